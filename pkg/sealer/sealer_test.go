package sealer

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s, err := New(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := s.Seal("64a0000000000000000000ff", "64a000000000000000000002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(token, "64a0000000000000000000ff") {
		t.Error("reference must not expose the raw reservation id")
	}

	reservationID, userID, err := s.Open(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservationID != "64a0000000000000000000ff" || userID != "64a000000000000000000002" {
		t.Errorf("round trip mismatch: got %s / %s", reservationID, userID)
	}
}

func TestSealOpen_DistinctTokensPerCall(t *testing.T) {
	s, err := New(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := s.Seal("res", "user")
	b, _ := s.Seal("res", "user")
	if a == b {
		t.Error("expected random nonce to produce distinct tokens")
	}
}

func TestOpen_RejectsTamperedToken(t *testing.T) {
	s, err := New(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, _ := s.Seal("res", "user")
	tampered := token[:len(token)-2] + "AA"
	if _, _, err := s.Open(tampered); err == nil {
		t.Error("expected tampered reference to fail authentication")
	}
}

func TestOpen_RejectsTokenFromOtherKey(t *testing.T) {
	s1, _ := New(testKey(t))
	s2, _ := New(testKey(t))

	token, _ := s1.Seal("res", "user")
	if _, _, err := s2.Open(token); err == nil {
		t.Error("expected reference sealed under another key to be rejected")
	}
}

func TestNew_RejectsBadKeys(t *testing.T) {
	if _, err := New("not base64!!"); err == nil {
		t.Error("expected invalid base64 to be rejected")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := New(short); err == nil {
		t.Error("expected short key to be rejected")
	}
}
