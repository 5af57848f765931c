package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenLength はマジックリンクトークンの乱数長（バイト）。
const tokenLength = 32

// generateToken はURLセーフなワンタイムトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
