package utils

import (
	"testing"

	"github.com/smbt-dev/inspectgo/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}
	if len(hash) == 0 {
		t.Error("Hash should not be empty")
	}

	// Test Comparison (Success)
	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	// Test Comparison (Failure)
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestJWT(t *testing.T) {
	secret := "test-secret-key-12345"
	user := &models.User{
		ID:       12,
		Email:    "inspector@example.com",
		PersonID: 34,
		Person:   &models.Person{ID: 34, RoleID: models.RoleExterminator},
	}

	accessToken, refreshToken, err := GenerateTokens(user, secret)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Error("Tokens should not be empty")
	}

	claims, err := ValidateAccessToken(accessToken, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if id, ok := ClaimUint(claims, "id"); !ok || id != user.ID {
		t.Errorf("Expected user ID %d, got %v", user.ID, claims["id"])
	}
	if pid, ok := ClaimUint(claims, "person_id"); !ok || pid != user.PersonID {
		t.Errorf("Expected person ID %d, got %v", user.PersonID, claims["person_id"])
	}
	if role, _ := ClaimUint(claims, "role_id"); role != models.RoleExterminator {
		t.Errorf("Expected role %d, got %v", models.RoleExterminator, claims["role_id"])
	}
	if claims["email"] != user.Email {
		t.Errorf("Expected email %s, got %v", user.Email, claims["email"])
	}

	// Refresh tokens are not accepted as access tokens
	if _, err := ValidateToken(refreshToken, secret); err != nil {
		t.Errorf("Refresh token should be valid: %v", err)
	}
	if _, err := ValidateAccessToken(refreshToken, secret); err == nil {
		t.Error("Refresh token should be rejected as access token")
	}

	// Test Validation (Failure - Wrong Key)
	if _, err := ValidateToken(accessToken, "wrong-key"); err == nil {
		t.Error("Validation should fail with wrong key")
	}
}

func TestClaimUintMissing(t *testing.T) {
	if _, ok := ClaimUint(map[string]interface{}{"id": "x"}, "id"); ok {
		t.Error("Non-numeric claim should not parse")
	}
	if _, ok := ClaimUint(map[string]interface{}{}, "id"); ok {
		t.Error("Missing claim should not parse")
	}
}
