package secret

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// CipherAge selects the age cipher.
const CipherAge = "age"

// Age seals tokens to the recipient of a single X25519 identity, which is the
// only key that can open them. Tokens are base64 of the binary age file.
type Age struct {
	identity *age.X25519Identity
}

// NewAge parses an AGE-SECRET-KEY-1... identity.
func NewAge(identity string) (*Age, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	return &Age{identity: id}, nil
}

// GenerateAgeIdentity returns a new identity in AGE-SECRET-KEY-1... form.
func GenerateAgeIdentity() (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age identity: %w", err)
	}
	return id.String(), nil
}

func (a *Age) Name() string { return CipherAge }

func (a *Age) Seal(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (a *Age) Open(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), a.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return io.ReadAll(r)
}
