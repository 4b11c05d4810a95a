package models

import (
	"strings"
	"testing"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("Alice Tester", "alice@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != ROLE_USER || u.Status != STATUS_ACTIVE {
		t.Fatalf("defaults = %s/%s", u.Role, u.Status)
	}
	if u.Password == "s3cret-pass" {
		t.Fatal("password stored in plain text")
	}
	if !u.CheckPassword("s3cret-pass") {
		t.Fatal("stored hash does not verify the original password")
	}
}

func TestCreateUserRejectsInvalid(t *testing.T) {
	if _, err := CreateUser("ab", "alice@example.com", "s3cret-pass"); err == nil {
		t.Fatal("short name accepted")
	}
	if _, err := CreateUser("Alice Tester", "not-an-email", "s3cret-pass"); err == nil {
		t.Fatal("bad email accepted")
	}
}

func TestSetPasswordRotates(t *testing.T) {
	u, err := CreateUser("Alice Tester", "alice@example.com", "old-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := u.SetPassword("new-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.CheckPassword("old-password") {
		t.Fatal("old password still verifies")
	}
	if !u.CheckPassword("new-password") {
		t.Fatal("new password does not verify")
	}
}

func TestIssueAPIKey(t *testing.T) {
	u := &User{}
	if u.HasActiveAPIKey() {
		t.Fatal("fresh user reports an active key")
	}

	raw, err := u.IssueAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(raw, "arad_") {
		t.Fatalf("key %q misses the prefix", raw)
	}
	if !strings.HasPrefix(raw, u.APIKeyPrefix) {
		t.Fatalf("stored prefix %q does not match key", u.APIKeyPrefix)
	}
	if u.APIKeyHash != HashAPIKey(raw) {
		t.Fatal("stored hash does not match the issued key")
	}
	if u.APIKeyHash == raw {
		t.Fatal("raw key persisted instead of the hash")
	}
	if !u.HasActiveAPIKey() || u.APIKeyCreatedAt == nil {
		t.Fatalf("key metadata incomplete: %+v", u)
	}

	second, err := u.IssueAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == raw {
		t.Fatal("reissue returned the same secret")
	}
	if u.APIKeyHash == HashAPIKey(raw) {
		t.Fatal("reissue kept the old hash")
	}
}

func TestRevokeAPIKey(t *testing.T) {
	u := &User{}
	if _, err := u.IssueAPIKey(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.RevokeAPIKey()
	if u.HasActiveAPIKey() {
		t.Fatal("revoked key still reports active")
	}
	if u.APIKeyHash != "" || u.APIKeyRevokedAt == nil {
		t.Fatalf("revocation left metadata behind: %+v", u)
	}
}

func TestHashAPIKeyTrimsInput(t *testing.T) {
	if HashAPIKey("arad_abc") != HashAPIKey("  arad_abc  ") {
		t.Fatal("surrounding whitespace changes the hash")
	}
	if HashAPIKey("arad_abc") == HashAPIKey("arad_abd") {
		t.Fatal("different keys collide")
	}
}
