package auth

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "bk_"

// NewAPIKey returns a fresh random key and its bcrypt hash. Only the hash is stored.
func NewAPIKey() (key, hash string, err error) {
	key = apiKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return key, string(h), nil
}

// CheckAPIKey reports whether key matches hash. An empty hash never matches.
func CheckAPIKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
