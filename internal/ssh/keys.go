// Package ssh inspects private key files referenced by ssh connections.
package ssh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyInfo describes a private key file.
type KeyInfo struct {
	Path string
	// Type is the public key algorithm, e.g. ssh-ed25519. Empty for encrypted keys.
	Type string
	// Fingerprint is the SHA256 fingerprint. Empty for encrypted keys.
	Fingerprint string
	// Encrypted keys need a passphrase; ssh will prompt for it.
	Encrypted bool
	// Warnings lists problems that do not stop ssh from trying the key.
	Warnings []string
}

// ExpandHome replaces a leading ~/ with the home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// InspectPrivateKey reads and parses the key at path.
func InspectPrivateKey(path string) (*KeyInfo, error) {
	full := ExpandHome(path)
	st, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("private key: %s is a directory", full)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	info := &KeyInfo{Path: full}
	if st.Mode().Perm()&0077 != 0 {
		info.Warnings = append(info.Warnings, fmt.Sprintf("permissions %04o are too open; ssh will ignore this key", st.Mode().Perm()))
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			info.Encrypted = true
			if missing.PublicKey != nil {
				info.Type = missing.PublicKey.Type()
				info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
			}
			return info, nil
		}
		return nil, fmt.Errorf("private key %s: %w", full, err)
	}
	info.Type = signer.PublicKey().Type()
	info.Fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	return info, nil
}
