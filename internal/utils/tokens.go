package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// 256 бит энтропии, если вызывающий не попросил иначе
const defaultRefreshBytes = 32

// NewRefreshToken — opaque refresh-токен для REST-сессий операторов.
// Хранится в БД как есть, в JWT не кодируется.
func NewRefreshToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = defaultRefreshBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
