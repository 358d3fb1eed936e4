package utils

import (
	"crypto/rand"
	"fmt"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode — случайный код для вставки в профиль (A-Z и цифры).
// Каждый вызов даёт новый код, старые при этом перестают действовать.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 8 // по умолчанию
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
