package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const secretSize = 32

// NewOpaqueToken generates a high-entropy opaque token: the base64url raw
// value handed to the caller exactly once, and the SHA-256 digest that is
// the only thing ever persisted.
func NewOpaqueToken() (string, [32]byte, error) {
	var secret [secretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", [32]byte{}, err
	}
	raw := base64.RawURLEncoding.EncodeToString(secret[:])
	return raw, sha256.Sum256(secret[:]), nil
}

// DigestToken recomputes the digest for a presented raw token. Decode and
// size failures mean the value cannot have been issued by NewOpaqueToken.
func DigestToken(raw string) ([32]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return [32]byte{}, err
	}
	if len(data) != secretSize {
		return [32]byte{}, errors.New("invalid token size")
	}
	return sha256.Sum256(data), nil
}

// DigestHex renders a digest as the lowercase hex string used for store keys.
func DigestHex(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}
