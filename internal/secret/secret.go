// Package secret encrypts stored passwords.
//
// Decrypt never fails: a token that cannot be opened (corrupt, tampered, or
// sealed with another key) decrypts to the empty string so a bad stored
// password shows up as a blank password rather than an error.
package secret

import (
	"errors"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMalformedToken means the token is not valid encoding for the cipher.
	ErrMalformedToken = errors.New("malformed token")
	// ErrUnknownCipher is returned for a cipher name other than xchacha or age.
	ErrUnknownCipher = errors.New("unknown cipher")
)

// Cipher is one symmetric, authenticated encryption scheme with its key loaded.
type Cipher interface {
	Name() string
	Seal(plaintext []byte) (string, error)
	Open(token string) ([]byte, error)
}

// Box encrypts and decrypts password fields.
type Box struct {
	cipher Cipher
}

// NewBox wraps c.
func NewBox(c Cipher) *Box {
	return &Box{cipher: c}
}

// Cipher reports the underlying cipher name.
func (b *Box) Cipher() string {
	return b.cipher.Name()
}

// Encrypt seals plaintext into a storable token.
func (b *Box) Encrypt(plaintext string) (string, error) {
	return b.cipher.Seal([]byte(plaintext))
}

// Verify returns the cipher's error when token does not open with this key.
func (b *Box) Verify(token string) error {
	_, err := b.cipher.Open(token)
	return err
}

// Decrypt opens token. Any failure yields "".
func (b *Box) Decrypt(token string) string {
	if token == "" {
		return ""
	}
	plaintext, err := b.cipher.Open(token)
	if err != nil {
		log.Debug().Str("component", "secret").Str("cipher", b.cipher.Name()).Err(err).Msg("stored secret could not be decrypted")
		return ""
	}
	return string(plaintext)
}
