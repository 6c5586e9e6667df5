package security

import (
	"strings"
	"testing"
	"time"
)

func TestPlaybackTokenRoundTrip(t *testing.T) {
	token, err := GeneratePlaybackToken(7, 42, time.Minute, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := VerifyPlaybackToken(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 7 || claims.LessonID != 42 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestPlaybackTokenWrongSecret(t *testing.T) {
	token, err := GeneratePlaybackToken(7, 42, time.Minute, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := VerifyPlaybackToken(token, "other"); err == nil {
		t.Fatal("expected signature error for wrong secret")
	}
}

func TestPlaybackTokenExpired(t *testing.T) {
	token, err := GeneratePlaybackToken(7, 42, -time.Minute, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := VerifyPlaybackToken(token, "secret"); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestPlaybackTokenTampered(t *testing.T) {
	token, err := GeneratePlaybackToken(7, 42, time.Minute, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parts := strings.SplitN(token, ".", 2)
	tampered := parts[0] + "x." + parts[1]
	if _, err := VerifyPlaybackToken(tampered, "secret"); err == nil {
		t.Fatal("expected error for tampered payload")
	}

	if _, err := VerifyPlaybackToken("not-a-token", "secret"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
