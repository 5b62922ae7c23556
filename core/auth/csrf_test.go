package auth

import "testing"

func TestCSRFRoundTrip(t *testing.T) {
	token, err := GenerateCSRF("key", "session-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}
	if !VerifyCSRF("key", "session-1", token) {
		t.Fatalf("token must verify for its own session")
	}
}

func TestCSRFIsBoundToSessionAndKey(t *testing.T) {
	token, err := GenerateCSRF("key", "session-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if VerifyCSRF("key", "session-2", token) {
		t.Fatalf("token must not verify for another session")
	}
	if VerifyCSRF("other-key", "session-1", token) {
		t.Fatalf("token must not verify under another key")
	}
	if VerifyCSRF("key", "session-1", "forged") {
		t.Fatalf("forged token must not verify")
	}
}
