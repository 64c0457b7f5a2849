package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a [Store] backed by a PostgreSQL database. The schema is
// managed by the embedded goose migrations, see [Migrate].
type Postgres struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// NewPostgres creates a [Postgres] store using the given connection or pool.
// The caller is responsible for running [Migrate] before issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateSession(ctx context.Context, id, personaID string) error {
	const query = `
		INSERT INTO voice_sessions (id, persona_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.Exec(ctx, query, id, personaID); err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (s *Postgres) AppendMessage(ctx context.Context, sessionID string, role Role, text string) error {
	const query = `
		INSERT INTO conversation_messages (session_id, role, text)
		VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, sessionID, string(role), text); err != nil {
		if isForeignKeyError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

func (s *Postgres) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	const query = `
		SELECT id, session_id, role, text, created_at
		FROM conversation_messages
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: recent messages scan: %w", err)
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	return msgs, nil
}

func (s *Postgres) UserMessageCount(ctx context.Context, sessionID string) (int, error) {
	const query = `
		SELECT count(*)
		FROM conversation_messages
		WHERE session_id = $1 AND role = $2`
	var count int
	if err := s.db.QueryRow(ctx, query, sessionID, string(RoleUser)).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: user message count: %w", err)
	}
	return count, nil
}

func (s *Postgres) SaveQuiz(ctx context.Context, sessionID string, questions []QuizQuestion) error {
	for _, q := range questions {
		choices, err := json.Marshal(q.Choices)
		if err != nil {
			return fmt.Errorf("store: marshal choices: %w", err)
		}
		const query = `
			INSERT INTO quiz_questions (id, session_id, question, choices, correct_index, time_limit_sec)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`
		if _, err := s.db.Exec(ctx, query, q.ID, sessionID, q.Question, choices, q.CorrectIndex, q.TimeLimitSec); err != nil {
			if isForeignKeyError(err) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("store: save quiz: %w", err)
		}
	}
	return nil
}

func (s *Postgres) RecordQuizAnswer(ctx context.Context, sessionID, questionID string, answerIndex int) error {
	const query = `
		INSERT INTO quiz_answers (session_id, question_id, answer_index)
		VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, sessionID, questionID, answerIndex); err != nil {
		if isForeignKeyError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("store: record quiz answer: %w", err)
	}
	return nil
}

// isForeignKeyError checks whether a PostgreSQL error is a foreign-key
// violation (SQLSTATE 23503).
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
