package tokens

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailtoken/internal/common"
)

// Envelope is what a token carries. It is never stored server side; the
// digest is recomputed from the user store on validation.
type Envelope struct {
	Email     string
	ExpiresAt time.Time
	Digest    string
}

// wireEnvelope is the JSON shape on the wire. Pointers let Decode tell a
// missing field from an empty one.
type wireEnvelope struct {
	Email    *string `json:"email"`
	ExpireAt *string `json:"expireAt"`
	Hash     *string `json:"hash"`
}

// Encode serializes e as compact JSON and base64-encodes the bytes.
// ExpiresAt is truncated to whole seconds in UTC.
func Encode(e Envelope) string {
	expireAt := FormatExpiry(e.ExpiresAt)
	w := wireEnvelope{Email: &e.Email, ExpireAt: &expireAt, Hash: &e.Digest}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding strings cannot fail
	_ = enc.Encode(w)

	return base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Decode reverses Encode. Any structural problem is reported as
// common.ErrMalformedToken; the digest itself is not verified here.
func Decode(token string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Envelope{}, malformed("not base64: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var w wireEnvelope
	if err := dec.Decode(&w); err != nil {
		return Envelope{}, malformed("bad payload: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Envelope{}, malformed("trailing data after payload")
	}

	switch {
	case w.Email == nil || *w.Email == "":
		return Envelope{}, malformed("missing email")
	case w.ExpireAt == nil:
		return Envelope{}, malformed("missing expireAt")
	case w.Hash == nil:
		return Envelope{}, malformed("missing hash")
	}

	expiresAt, err := ParseExpiry(*w.ExpireAt)
	if err != nil {
		return Envelope{}, malformed("bad expireAt %q", *w.ExpireAt)
	}
	if !isHexDigest(*w.Hash) {
		return Envelope{}, malformed("hash is not %d lowercase hex characters", DigestLen)
	}

	return Envelope{Email: *w.Email, ExpiresAt: expiresAt, Digest: *w.Hash}, nil
}

func isHexDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrMalformedToken, fmt.Sprintf(format, args...))
}
