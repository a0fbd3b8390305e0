package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/teachassist/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessment_questions (
		assessment_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		max_score INTEGER NOT NULL,
		PRIMARY KEY (assessment_id, number),
		FOREIGN KEY (assessment_id) REFERENCES assessments(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAssessment stores an assessment and its questions in input order.
func (s *Store) CreateAssessment(a model.Assessment) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`INSERT INTO assessments (title, created_at) VALUES (?, ?)`, a.Title, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, q := range a.Questions {
		_, err := tx.Exec(
			`INSERT INTO assessment_questions (assessment_id, number, position, text, max_score)
			 VALUES (?, ?, ?, ?, ?)`,
			id, q.Number, i, q.Text, q.MaxScore,
		)
		if err != nil {
			return 0, fmt.Errorf("insert question %d: %w", q.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetAssessment returns an assessment with its questions.
// Returns sql.ErrNoRows if it does not exist.
func (s *Store) GetAssessment(id int64) (model.Assessment, error) {
	var a model.Assessment
	err := s.db.QueryRow(`SELECT id, title, created_at FROM assessments WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.Questions, err = s.questionsFor(id)
	return a, err
}

// ListAssessments returns all assessments, newest first.
func (s *Store) ListAssessments() ([]model.Assessment, error) {
	rows, err := s.db.Query(`SELECT id, title, created_at FROM assessments ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		assessments = append(assessments, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range assessments {
		qs, err := s.questionsFor(assessments[i].ID)
		if err != nil {
			return nil, err
		}
		assessments[i].Questions = qs
	}
	return assessments, nil
}

func (s *Store) questionsFor(assessmentID int64) ([]model.AssessmentQuestion, error) {
	rows, err := s.db.Query(
		`SELECT number, text, max_score FROM assessment_questions
		 WHERE assessment_id = ? ORDER BY position`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.AssessmentQuestion
	for rows.Next() {
		var q model.AssessmentQuestion
		if err := rows.Scan(&q.Number, &q.Text, &q.MaxScore); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AssessmentCount returns the number of stored assessments.
func (s *Store) AssessmentCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM assessments`).Scan(&count)
	return count, err
}
