package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const serviceKeyBytes = 32

// GenerateSecureRandomString hex encodes lengthInBytes random bytes, so 32 bytes gives a 64 char string.
func GenerateSecureRandomString(lengthInBytes int) (string, error) {
	if lengthInBytes <= 0 {
		return "", fmt.Errorf("lengthInBytes must be positive")
	}
	b := make([]byte, lengthInBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewServiceKey returns a fresh service key and the hash to put in SERVICE_API_KEYS.
func NewServiceKey() (key string, hash string, err error) {
	key, err = GenerateSecureRandomString(serviceKeyBytes)
	if err != nil {
		return "", "", err
	}
	return key, HashServiceKey(key), nil
}

// HashServiceKey returns the hex SHA-256 of a service key. Keys are high-entropy random
// strings, so a fast hash is enough and only the hash needs to be configured.
func HashServiceKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CompareServiceKeyHash compares a presented key with a stored hash in constant time.
func CompareServiceKeyHash(key, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashServiceKey(key)), []byte(storedHash)) == 1
}
