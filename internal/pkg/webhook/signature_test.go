package webhook

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_failed"}`)
	secret := "whsec_test"

	macSHA := hmac.New(sha256.New, []byte(secret))
	macSHA.Write(payload)
	shaSig := hex.EncodeToString(macSHA.Sum(nil))

	macMD5 := hmac.New(md5.New, []byte(secret))
	macMD5.Write(payload)
	md5Sig := hex.EncodeToString(macMD5.Sum(nil))

	if !VerifySignature(payload, shaSig, secret) {
		t.Fatalf("expected sha256 signature to validate")
	}
	if !VerifySignature(payload, md5Sig, secret) {
		t.Fatalf("expected legacy md5 signature to validate")
	}
	if VerifySignature(payload, "deadbeef", secret) {
		t.Fatalf("expected bogus signature to fail")
	}
	if VerifySignature(payload, shaSig, "wrong_secret") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifySignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifySignature(payload, "zzzz", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
}
