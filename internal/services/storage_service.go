// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
)

// StorageService archives raw provider payloads to S3 for audit.
type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	prefix   string
	clock    clock.Clock
	log      *logrus.Entry
}

func NewStorageService(cfg config.AWSConfig, clk clock.Clock) (*StorageService, error) {
	if cfg.AccessKeyID == "" || cfg.S3Bucket == "" {
		// Archive disabled for local development
		return NewStorageServiceWithClient(nil, "", cfg.ArchivePrefix, clk), nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewStorageServiceWithClient(s3.New(sess), cfg.S3Bucket, cfg.ArchivePrefix, clk), nil
}

func NewStorageServiceWithClient(client s3iface.S3API, bucket, prefix string, clk clock.Clock) *StorageService {
	return &StorageService{
		s3Client: client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		clock:    clk,
		log:      logrus.WithField("service", "storage"),
	}
}

func (s *StorageService) Enabled() bool {
	return s.s3Client != nil
}

// ArchivePayload stores payload under <prefix>/<kind>/<yyyy/mm/dd>/<id>.json
// and returns the object key. It is a no-op returning "" when no bucket is
// configured.
func (s *StorageService) ArchivePayload(ctx context.Context, kind string, id uuid.UUID, payload []byte) (string, error) {
	key := s.archiveKey(kind, id)
	if s.s3Client == nil {
		s.log.WithField("key", key).Debug("Payload archive disabled")
		return "", nil
	}

	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}

func (s *StorageService) archiveKey(kind string, id uuid.UUID) string {
	date := s.clock.Now().Format("2006/01/02")
	if s.prefix == "" {
		return fmt.Sprintf("%s/%s/%s.json", kind, date, id)
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", s.prefix, kind, date, id)
}
