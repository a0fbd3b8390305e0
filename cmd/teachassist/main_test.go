package main

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/teachassist/internal/credentials"
	"github.com/pavelanni/teachassist/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedAdmin(t *testing.T) {
	db := newTestStore(t)

	enabled, err := seedAdmin(db, "")
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	if enabled {
		t.Error("auth should be disabled without users or password")
	}

	enabled, err = seedAdmin(db, "first")
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	if !enabled {
		t.Error("auth should be enabled after seeding")
	}

	// A new password replaces the stored hash.
	if _, err := seedAdmin(db, "second"); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	admin, err := db.GetUserByUsername("admin")
	if err != nil || admin == nil {
		t.Fatalf("GetUserByUsername: %v %v", admin, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("second")) != nil {
		t.Error("admin password was not updated")
	}

	// Existing users keep auth on even without a password flag.
	enabled, err = seedAdmin(db, "")
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	if !enabled {
		t.Error("auth should stay enabled while users exist")
	}
}

func TestSeedKeys(t *testing.T) {
	db := newTestStore(t)
	p := credentials.NewProvider(db)

	if err := seedKeys(p, "", ""); err != nil {
		t.Fatalf("seedKeys: %v", err)
	}
	if k := p.Keys(); k.GenKey != "" || k.StorageKey != "" {
		t.Errorf("expected no keys, got %+v", k)
	}

	if err := seedKeys(p, "gen", ""); err != nil {
		t.Fatalf("seedKeys: %v", err)
	}
	if err := seedKeys(p, "", "store"); err != nil {
		t.Fatalf("seedKeys: %v", err)
	}
	k := credentials.NewProvider(db).Keys()
	if k.GenKey != "gen" || k.StorageKey != "store" {
		t.Errorf("keys = %+v", k)
	}
}

func TestPrintKeys(t *testing.T) {
	k := credentials.Keys{GenKey: "abcdefgh1234"}

	var buf bytes.Buffer
	if err := printKeys(&buf, k, false); err != nil {
		t.Fatalf("printKeys: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "abcdefgh") || strings.Contains(out, "1234") {
		t.Errorf("masked output leaks the key: %q", out)
	}
	if !strings.Contains(out, "generation key: ********\n") || !strings.Contains(out, "(not set)") {
		t.Errorf("unexpected output: %q", out)
	}

	buf.Reset()
	if err := printKeys(&buf, k, true); err != nil {
		t.Fatalf("printKeys: %v", err)
	}
	if !strings.Contains(buf.String(), "abcdefgh1234") {
		t.Errorf("revealed output should contain the key: %q", buf.String())
	}
}

func TestReadRequest(t *testing.T) {
	in := strings.NewReader(`{
		"studentName": "Ann",
		"studentId": "s1",
		"assessmentTitle": "OS",
		"questions": [{"number": 1, "text": "What is an OS?", "maxScore": 10}],
		"responses": [{"questionNumber": 1, "response": "software"}]
	}`)
	req, err := readRequest(in, "-")
	if err != nil {
		t.Fatalf("readRequest: %v", err)
	}
	if req.StudentID != "s1" || len(req.Questions) != 1 || req.Questions[0].MaxScore != 10 || req.Responses[0].Response != "software" {
		t.Errorf("request = %+v", req)
	}

	if _, err := readRequest(strings.NewReader("{"), "-"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
