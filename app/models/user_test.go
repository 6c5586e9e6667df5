package models

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestUserAnonymize(t *testing.T) {
	sentAt := time.Now()
	user := User{
		ID:               42,
		Name:             "Jordan Machinist",
		Email:            "jordan@example.com",
		Password:         "$2a$10$hash",
		Role:             ROLE_STUDENT,
		Status:           STATUS_ACTIVE,
		AvatarURL:        "https://cdn.example.com/a.png",
		ActivationToken:  "tok",
		ActivationSentAt: &sentAt,
	}

	user.Anonymize()

	if user.Email != fmt.Sprintf("deleted_%d@deleted.local", user.ID) {
		t.Fatalf("email not scrubbed: %q", user.Email)
	}
	if strings.Contains(user.Email, "jordan") || user.Name != "Deleted User" {
		t.Fatalf("personal data survived anonymization: %q %q", user.Name, user.Email)
	}
	if user.Password != "" || user.AvatarURL != "" {
		t.Fatal("credentials and avatar must be cleared")
	}
	if user.Status != STATUS_DISABLED {
		t.Fatalf("expected disabled status, got %q", user.Status)
	}
	if user.ActivationToken != "" || user.ActivationSentAt != nil {
		t.Fatal("activation state must be cleared")
	}
	if user.ID != 42 {
		t.Fatal("id must survive so retained billing rows keep their linkage")
	}
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPasswordHash("correct horse battery staple", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("expected mismatch to fail")
	}
}
