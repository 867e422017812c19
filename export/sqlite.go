// Package export writes merged question records to review formats.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"mcqscan/question"
)

// SQLite stores questions and their explanations in a SQLite database
type SQLite struct {
	db *sqlx.DB
}

type questionRow struct {
	Folder           string `db:"folder"`
	ID               string `db:"id"`
	TopicBN          string `db:"topic_bn"`
	TopicEN          string `db:"topic_en"`
	QuestionText     string `db:"question_text"`
	OptionA          string `db:"option_a"`
	OptionB          string `db:"option_b"`
	OptionC          string `db:"option_c"`
	OptionD          string `db:"option_d"`
	CorrectAnswerKey string `db:"correct_answer_key"`
	Reference        string `db:"reference"`
	Difficulty       string `db:"difficulty"`
	Tags             string `db:"tags"`
	Context          string `db:"context"`
}

type explanationRow struct {
	Folder               string `db:"folder"`
	QuestionID           string `db:"question_id"`
	Short                string `db:"short"`
	Detailed             string `db:"detailed"`
	MathematicalDeriv    string `db:"mathematical_derivation"`
	KeyConcept           string `db:"key_concept"`
	CommonMistakes       string `db:"common_mistakes"`
	RealWorldApplication string `db:"real_world_application"`
	MemoryTip            string `db:"memory_tip"`
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initializeSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS questions (
			folder TEXT NOT NULL,
			id TEXT NOT NULL,
			topic_bn TEXT,
			topic_en TEXT,
			question_text TEXT NOT NULL,
			option_a TEXT,
			option_b TEXT,
			option_c TEXT,
			option_d TEXT,
			correct_answer_key TEXT,
			reference TEXT,
			difficulty TEXT,
			tags TEXT,
			context TEXT,
			exported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (folder, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create questions table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS explanations (
			folder TEXT NOT NULL,
			question_id TEXT NOT NULL,
			short TEXT,
			detailed TEXT,
			mathematical_derivation TEXT,
			key_concept TEXT,
			common_mistakes TEXT,
			real_world_application TEXT,
			memory_tip TEXT,
			PRIMARY KEY (folder, question_id),
			FOREIGN KEY (folder, question_id) REFERENCES questions(folder, id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create explanations table: %w", err)
	}

	return nil
}

// WriteFolder replaces the stored questions of folder with records
func (s *SQLite) WriteFolder(ctx context.Context, folder string, records []question.Record) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE folder = ?", folder); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to clear folder %s: %w", folder, err)
	}

	for _, rec := range records {
		row, err := toQuestionRow(folder, rec)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		// ids repeat when a page prints the same number twice; keep the last
		_, err = tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO questions (folder, id, topic_bn, topic_en, question_text,
				option_a, option_b, option_c, option_d, correct_answer_key, reference, difficulty, tags, context)
			VALUES (:folder, :id, :topic_bn, :topic_en, :question_text,
				:option_a, :option_b, :option_c, :option_d, :correct_answer_key, :reference, :difficulty, :tags, :context)`, row)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert question %s: %w", rec.ID, err)
		}

		if rec.Explanation == nil {
			continue
		}
		exp := explanationRow{
			Folder:               folder,
			QuestionID:           rec.ID,
			Short:                rec.Explanation.Short,
			Detailed:             rec.Explanation.Detailed,
			MathematicalDeriv:    rec.Explanation.MathematicalDeriv,
			KeyConcept:           rec.Explanation.KeyConcept,
			CommonMistakes:       rec.Explanation.CommonMistakes,
			RealWorldApplication: rec.Explanation.RealWorldApplication,
			MemoryTip:            rec.Explanation.MemoryTip,
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO explanations (folder, question_id, short, detailed, mathematical_derivation,
				key_concept, common_mistakes, real_world_application, memory_tip)
			VALUES (:folder, :question_id, :short, :detailed, :mathematical_derivation,
				:key_concept, :common_mistakes, :real_world_application, :memory_tip)`, exp)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert explanation %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return s.Count(ctx, folder)
}

// Count returns the number of stored questions for folder
func (s *SQLite) Count(ctx context.Context, folder string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM questions WHERE folder = ?", folder); err != nil {
		return 0, err
	}
	return n, nil
}

// TopicCount is the number of questions stored under one topic
type TopicCount struct {
	TopicBN string `db:"topic_bn"`
	TopicEN string `db:"topic_en"`
	Count   int    `db:"n"`
}

// Topics returns per-topic question counts for folder, largest first
func (s *SQLite) Topics(ctx context.Context, folder string) ([]TopicCount, error) {
	var out []TopicCount
	err := s.db.SelectContext(ctx, &out, `
		SELECT topic_bn, topic_en, COUNT(*) AS n FROM questions
		WHERE folder = ? GROUP BY topic_bn, topic_en ORDER BY n DESC, topic_en`, folder)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toQuestionRow(folder string, rec question.Record) (questionRow, error) {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return questionRow{}, fmt.Errorf("failed to encode tags of %s: %w", rec.ID, err)
	}
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return questionRow{}, fmt.Errorf("failed to encode context of %s: %w", rec.ID, err)
	}

	row := questionRow{
		Folder:           folder,
		ID:               rec.ID,
		TopicBN:          stringValue(rec.Context["topic_bn"]),
		TopicEN:          stringValue(rec.Context["topic_en"]),
		QuestionText:     rec.QuestionText,
		CorrectAnswerKey: rec.CorrectAnswerKey,
		Reference:        rec.Reference,
		Difficulty:       rec.Difficulty,
		Tags:             string(tags),
		Context:          string(ctxJSON),
	}
	for _, o := range rec.Options {
		switch o.Key {
		case "a":
			row.OptionA = o.Text
		case "b":
			row.OptionB = o.Text
		case "c":
			row.OptionC = o.Text
		case "d":
			row.OptionD = o.Text
		}
	}
	return row, nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
