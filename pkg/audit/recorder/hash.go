package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// HashContent returns the hex-encoded SHA-256 of content, or "" when
// content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex-encoded SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return HashContent(data), nil
}
