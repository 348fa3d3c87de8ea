package user

import (
	"regexp"
	"testing"
)

var hexRegex = regexp.MustCompile(`^[0-9a-f]+$`)

func TestGenerateSalt(t *testing.T) {
	s1 := GenerateSalt()
	s2 := GenerateSalt()

	if len(s1) != 32 {
		t.Errorf("GenerateSalt() len = %d; want 32", len(s1))
	}
	if !hexRegex.MatchString(s1) {
		t.Errorf("GenerateSalt() = %q; want lowercase hex", s1)
	}
	if s1 == s2 {
		t.Errorf("GenerateSalt() returned the same salt twice: %q", s1)
	}
}

func TestHashPassword(t *testing.T) {
	h := HashPassword("s3cr3t", "00112233445566778899aabbccddeeff")

	if len(h) != 64 {
		t.Errorf("HashPassword() len = %d; want 64", len(h))
	}
	if !hexRegex.MatchString(h) {
		t.Errorf("HashPassword() = %q; want lowercase hex", h)
	}
	if h != HashPassword("s3cr3t", "00112233445566778899aabbccddeeff") {
		t.Error("HashPassword() is not deterministic")
	}
	if h == HashPassword("s3cr3t", "ffeeddccbbaa99887766554433221100") {
		t.Error("HashPassword() ignored the salt")
	}
	if h == HashPassword("hunter2", "00112233445566778899aabbccddeeff") {
		t.Error("HashPassword() ignored the password")
	}
}

func TestUser_SetCheckPassword(t *testing.T) {
	var u User
	u.SetPassword("s3cr3t")

	if u.Salt == "" || u.PasswordHash == "" {
		t.Fatal("SetPassword() left salt or hash empty")
	}
	if !u.CheckPassword("s3cr3t") {
		t.Error("CheckPassword() rejected the correct password")
	}
	if u.CheckPassword("hunter2") {
		t.Error("CheckPassword() accepted a wrong password")
	}

	// same password, new salt -> new digest
	prevSalt, prevHash := u.Salt, u.PasswordHash
	u.SetPassword("s3cr3t")
	if u.Salt == prevSalt {
		t.Error("SetPassword() reused the salt")
	}
	if u.PasswordHash == prevHash {
		t.Error("SetPassword() reused the digest")
	}
	if !u.CheckPassword("s3cr3t") {
		t.Error("CheckPassword() rejected the correct password after re-salt")
	}
}
