package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const managementTokenBytes = 32

// GenerateManagementToken creates a high-entropy capability token. Whoever
// holds the token can mutate the bounty it belongs to, so the only
// requirement is that tokens are unguessable and never collide.
func GenerateManagementToken() (string, error) {
	buf := make([]byte, managementTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate management token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
