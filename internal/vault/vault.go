// Package vault handles ansible-vault tagged scalars at the parse level.
// Without a Decryptor the core treats the payloads opaquely and only records
// the vault ids it encountered; decryption is strictly opt-in.
package vault

import (
	"context"
	"fmt"
	"strings"
)

// Header is the parsed first line of a vault payload,
// `$ANSIBLE_VAULT;<version>;<cipher>[;<vault-id>]`.
type Header struct {
	Version string
	Cipher  string
	// ID is the vault id label; "default" when the envelope carries none.
	ID string
}

// Decryptor is the optional external collaborator that turns an encrypted
// payload into plaintext.
type Decryptor interface {
	Decrypt(ctx context.Context, payload []byte, vaultID string) ([]byte, error)
}

// DecryptionError wraps a decryptor failure with the vault id involved.
type DecryptionError struct {
	VaultID string
	Err     error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("vault decryption failed for id %q: %s", e.VaultID, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// ParseHeader reads the envelope line of a vault payload. The payload is the
// scalar text of a !vault tagged node.
func ParseHeader(payload string) (Header, error) {
	line := payload
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	parts := strings.Split(line, ";")
	if len(parts) < 3 || parts[0] != "$ANSIBLE_VAULT" {
		return Header{}, fmt.Errorf("not a vault envelope: %q", line)
	}
	h := Header{Version: parts[1], Cipher: parts[2], ID: "default"}
	if len(parts) > 3 && parts[3] != "" {
		h.ID = parts[3]
	}
	return h, nil
}
