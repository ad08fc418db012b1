package cryptox

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestAESGCM_RoundTrip(t *testing.T) {
	key, err := KeyFromB64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	if err != nil {
		t.Fatalf("KeyFromB64: %v", err)
	}
	plain := []byte(`{"type":"user.created","data":{"id":"u1"}}`)

	sealed, err := EncryptAESGCM(key, plain, []byte("msg_1"))
	if err != nil {
		t.Fatalf("EncryptAESGCM: %v", err)
	}
	if bytes.Contains(sealed, []byte("user.created")) {
		t.Fatalf("ciphertext contains plaintext")
	}
	if _, err := DecryptAESGCM(key, sealed, []byte("msg_2")); err == nil {
		t.Fatalf("expected mismatched aad to fail")
	}
	opened, err := DecryptAESGCM(key, sealed, []byte("msg_1"))
	if err != nil {
		t.Fatalf("DecryptAESGCM: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("round trip mismatch: %s", opened)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := DecryptAESGCM(key, sealed, []byte("msg_1")); err == nil {
		t.Fatalf("expected tampered ciphertext to fail")
	}
}

func TestKeyFromB64_Rejects(t *testing.T) {
	for _, in := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := KeyFromB64(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
