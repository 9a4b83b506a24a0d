package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

var ErrInvalidSecretKey = errors.New("secret key is not an nsec or valid hex")

// KeyPair holds the signing key used by the mirror in both encodings.
type KeyPair struct {
	PrivateKeyHex    string
	PrivateKeyBech32 string // nsec
	PublicKeyHex     string
	PublicKeyBech32  string // npub
}

// ParseSecretKey accepts a 64 character hex key or an nsec and returns the hex form.
func ParseSecretKey(secretKey string) (string, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSecretKey)
	}

	if len(secretKey) == 64 {
		if _, err := hex.DecodeString(secretKey); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
		}
		return strings.ToLower(secretKey), nil
	}

	prefix, sk, err := nip19.Decode(secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	if prefix != "nsec" {
		return "", fmt.Errorf("%w: got %s", ErrInvalidSecretKey, prefix)
	}
	switch v := sk.(type) {
	case string:
		return v, nil
	case []byte:
		return hex.EncodeToString(v), nil
	default:
		return "", fmt.Errorf("%w: unexpected nsec payload %T", ErrInvalidSecretKey, sk)
	}
}

// DeriveKeyPair parses secretKey (hex or nsec) and derives the matching public key.
func DeriveKeyPair(secretKey string) (*KeyPair, error) {
	skHex, err := ParseSecretKey(secretKey)
	if err != nil {
		return nil, err
	}

	pubHex, err := nostr.GetPublicKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	nsec, err := nip19.EncodePrivateKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	npub, err := nip19.EncodePublicKey(pubHex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	return &KeyPair{
		PrivateKeyHex:    skHex,
		PrivateKeyBech32: nsec,
		PublicKeyHex:     pubHex,
		PublicKeyBech32:  npub,
	}, nil
}
