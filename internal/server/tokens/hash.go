// Package tokens implements the stateless user token: a keyed SHA-256
// digest over the user's identity and expiry, carried in a base64 JSON
// envelope.
package tokens

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// ExpiryLayout is the wire and digest format of the expiry instant:
// second precision, UTC, literal Z.
const ExpiryLayout = "2006-01-02T15:04:05Z"

// DigestLen is the length of a hex-encoded digest.
const DigestLen = sha256.Size * 2

// Claim is the digest input. It only ever lives in memory.
type Claim struct {
	ID           string
	Name         string
	Email        string
	ServerSecret string
	ExpiresAt    time.Time
}

// Digest returns the lowercase hex SHA-256 of
// "id|name|email|secret|expireAt".
//
// Field values are not escaped, so a '|' inside a field can make two
// different claims produce the same input string. Changing that would
// invalidate every outstanding token, so the scheme is kept as is.
func Digest(c Claim) string {
	payload := strings.Join([]string{
		c.ID,
		c.Name,
		c.Email,
		c.ServerSecret,
		FormatExpiry(c.ExpiresAt),
	}, "|")

	h := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(h[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FormatExpiry renders t in ExpiryLayout.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(ExpiryLayout)
}

// ParseExpiry parses a string in ExpiryLayout.
func ParseExpiry(s string) (time.Time, error) {
	return time.Parse(ExpiryLayout, s)
}
