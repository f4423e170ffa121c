// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateRedeemKey returns the key a door scanner checks at redemption.
func GenerateRedeemKey() (string, error) {
	return GenerateRandomString(10)
}

// GenerateWalletKeyPair returns a hex encoded X25519 secret and public key.
func GenerateWalletKeyPair() (secretKey, publicKey string, err error) {
	secret := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive public key: %w", err)
	}

	return hex.EncodeToString(secret), hex.EncodeToString(public), nil
}

// WalletPublicKey derives the public key for a hex encoded secret.
func WalletPublicKey(secretKey string) (string, error) {
	secret, err := hex.DecodeString(secretKey)
	if err != nil {
		return "", fmt.Errorf("invalid secret key: %w", err)
	}
	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return hex.EncodeToString(public), nil
}
