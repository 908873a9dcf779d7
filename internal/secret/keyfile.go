package secret

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const ageKeyPrefix = "AGE-SECRET-KEY-"

// LoadOrCreate opens the key file at path and returns a Box for it. When the file
// does not exist a key for cipherName is generated and written with mode 0600.
// An existing file decides the cipher by its content, whatever cipherName says.
func LoadOrCreate(path, cipherName string) (*Box, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		c, err := parseKey(data)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		return NewBox(c), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	encoded, err := generateKey(cipherName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return nil, err
	}
	log.Info().Str("component", "secret").Str("path", path).Str("cipher", cipherName).Msg("generated new key file")
	c, err := parseKey(encoded)
	if err != nil {
		return nil, err
	}
	return NewBox(c), nil
}

func generateKey(cipherName string) ([]byte, error) {
	switch cipherName {
	case "", CipherXChaCha:
		key, err := GenerateXChaChaKey()
		if err != nil {
			return nil, err
		}
		return []byte(base64.URLEncoding.EncodeToString(key) + "\n"), nil
	case CipherAge:
		id, err := GenerateAgeIdentity()
		if err != nil {
			return nil, err
		}
		return []byte(id + "\n"), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, cipherName)
}

func parseKey(data []byte) (Cipher, error) {
	text := strings.TrimSpace(string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	if strings.HasPrefix(text, ageKeyPrefix) {
		return NewAge(text)
	}
	key, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	return NewXChaCha(key)
}
