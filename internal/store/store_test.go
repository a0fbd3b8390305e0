package store

import (
	"database/sql"
	"testing"

	"github.com/pavelanni/teachassist/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestAssessment(t *testing.T, s *Store, title string, questions ...model.AssessmentQuestion) int64 {
	t.Helper()
	id, err := s.CreateAssessment(model.Assessment{Title: title, Questions: questions})
	if err != nil {
		t.Fatalf("insertTestAssessment: %v", err)
	}
	return id
}

func TestAssessmentCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.AssessmentCount()
	if err != nil {
		t.Fatalf("AssessmentCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 assessments, got %d", count)
	}
	list, err := s.ListAssessments()
	if err != nil {
		t.Fatalf("ListAssessments: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	// Questions keep input order, not number order.
	id := insertTestAssessment(t, s, "Computer Science Basics",
		model.AssessmentQuestion{Number: 2, Text: "Generations of computers", MaxScore: 10},
		model.AssessmentQuestion{Number: 1, Text: "Functions of an OS", MaxScore: 5},
	)
	a, err := s.GetAssessment(id)
	if err != nil {
		t.Fatalf("GetAssessment: %v", err)
	}
	if a.Title != "Computer Science Basics" {
		t.Errorf("expected title 'Computer Science Basics', got %q", a.Title)
	}
	if len(a.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(a.Questions))
	}
	if a.Questions[0].Number != 2 || a.Questions[1].Number != 1 {
		t.Errorf("expected question order [2 1], got [%d %d]", a.Questions[0].Number, a.Questions[1].Number)
	}
	if a.Questions[1].MaxScore != 5 {
		t.Errorf("expected max score 5, got %d", a.Questions[1].MaxScore)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	// Not found.
	_, err = s.GetAssessment(9999)
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	insertTestAssessment(t, s, "Physics", model.AssessmentQuestion{Number: 1, Text: "What is force?", MaxScore: 10})
	list, err = s.ListAssessments()
	if err != nil {
		t.Fatalf("ListAssessments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(list))
	}
	if list[0].Title != "Physics" {
		t.Errorf("expected newest first, got %q", list[0].Title)
	}
	if len(list[1].Questions) != 2 {
		t.Errorf("expected questions loaded for listed assessment, got %d", len(list[1].Questions))
	}
}

func TestCreateAssessmentDuplicateNumber(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateAssessment(model.Assessment{
		Title: "Dup",
		Questions: []model.AssessmentQuestion{
			{Number: 1, Text: "a", MaxScore: 1},
			{Number: 1, Text: "b", MaxScore: 1},
		},
	})
	if err == nil {
		t.Fatal("expected error for duplicate question number")
	}

	// The failed transaction must not leave a partial assessment behind.
	count, err := s.AssessmentCount()
	if err != nil {
		t.Fatalf("AssessmentCount: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 assessments after rollback, got %d", count)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetMetadata("missing")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}

	if err := s.SetMetadata("apiKeys", `{"a":"1"}`); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("apiKeys", `{"a":"2"}`); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	got, err = s.GetMetadata("apiKeys")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got != `{"a":"2"}` {
		t.Errorf("expected overwritten value, got %q", got)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	u, err := s.GetUserByUsername("admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for missing user, got %+v", u)
	}

	if _, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "h1", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "h2", Active: true}); err == nil {
		t.Error("expected error for duplicate username")
	}

	if err := s.SetUserPassword("admin", "h3"); err != nil {
		t.Fatalf("SetUserPassword: %v", err)
	}
	u, err = s.GetUserByUsername("admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.PasswordHash != "h3" || !u.Active {
		t.Errorf("unexpected user %+v", u)
	}

	if err := s.SetUserPassword("nobody", "x"); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows for unknown user, got %v", err)
	}
}
