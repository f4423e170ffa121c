// internal/services/storage_service_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ticketing-backend/internal/clock"
	"github.com/javajoker/ticketing-backend/internal/config"
	"github.com/javajoker/ticketing-backend/internal/services"
)

func TestArchivePayload(t *testing.T) {
	client := &fakeS3{}
	storage := services.NewStorageServiceWithClient(client, "audit", "/raw/", clock.NewManual(testStart))
	id := uuid.New()

	key, err := storage.ArchivePayload(context.Background(), "ipn/globee", id, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "raw/ipn/globee/2026/03/01/"+id.String()+".json", key)
	assert.Equal(t, []string{key}, client.keys)

	client.err = errors.New("access denied")
	_, err = storage.ArchivePayload(context.Background(), "ipn/globee", id, []byte(`{}`))
	assert.ErrorContains(t, err, "access denied")
}

func TestArchiveDisabledWithoutBucket(t *testing.T) {
	storage, err := services.NewStorageService(config.AWSConfig{}, clock.NewManual(testStart))
	require.NoError(t, err)
	assert.False(t, storage.Enabled())

	key, err := storage.ArchivePayload(context.Background(), "ipn", uuid.New(), []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, key)
}
