package crypto

import (
	"errors"
	"strings"
	"testing"

	"wiki-relay/pkg/testutil"
)

func TestDeriveKeyPairHexAndNsecAgree(t *testing.T) {
	fromHex, err := DeriveKeyPair(testutil.TestSKHex)
	if err != nil {
		t.Fatalf("hex key: %v", err)
	}
	fromNsec, err := DeriveKeyPair(testutil.TestSKNsec)
	if err != nil {
		t.Fatalf("nsec key: %v", err)
	}

	if *fromHex != *fromNsec {
		t.Errorf("expected identical key pairs, got %+v and %+v", fromHex, fromNsec)
	}
	if fromHex.PrivateKeyBech32 != testutil.TestSKNsec {
		t.Errorf("expected nsec %s, got %s", testutil.TestSKNsec, fromHex.PrivateKeyBech32)
	}
	if fromHex.PrivateKeyHex != testutil.TestSKHex {
		t.Errorf("expected hex %s, got %s", testutil.TestSKHex, fromHex.PrivateKeyHex)
	}
	if len(fromHex.PublicKeyHex) != 64 || !strings.HasPrefix(fromHex.PublicKeyBech32, "npub1") {
		t.Errorf("unexpected public key forms %+v", fromHex)
	}
}

func TestParseSecretKeyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", "   "},
		{"garbage", "invalid"},
		{"bad hex", strings.Repeat("z", 64)},
		{"wrong prefix", "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSecretKey(tt.key)
			if !errors.Is(err, ErrInvalidSecretKey) {
				t.Errorf("expected ErrInvalidSecretKey, got %v", err)
			}
		})
	}
}

func TestParseSecretKeyTrimsAndLowercases(t *testing.T) {
	got, err := ParseSecretKey("  " + strings.ToUpper(testutil.TestSKHex) + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != testutil.TestSKHex {
		t.Errorf("expected %s, got %s", testutil.TestSKHex, got)
	}
}
