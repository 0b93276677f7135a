package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"carebot/internal/providers"
)

type SQLiteStore struct {
	db     *sql.DB
	logger providers.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	current_question_index INTEGER NOT NULL DEFAULT 0,
	waiting_for_followup INTEGER NOT NULL DEFAULT 0,
	followup_question_index INTEGER,
	completed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	question_index INTEGER NOT NULL,
	question_text TEXT NOT NULL,
	answer_value TEXT NOT NULL,
	answer_kind TEXT NOT NULL DEFAULT 'text',
	media_ref TEXT,
	followup_value TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS photos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	question_index INTEGER NOT NULL,
	file_id TEXT NOT NULL,
	file_unique_id TEXT,
	file_size INTEGER,
	caption TEXT,
	uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS pending_prompts (
	user_id INTEGER PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	token TEXT NOT NULL,
	message_ref TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_answers_user ON answers (user_id);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers (question_index);
CREATE INDEX IF NOT EXISTS idx_photos_user ON photos (user_id);
`

func NewSQLiteStore(dsn string, logger providers.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	logger.Infof(providers.TypeStore, "SQLite store ready at %s", dsn)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Errorf(providers.TypeStore, "rollback failed: %s", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, userID int64, profile UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		userID, profile.Username, profile.FirstName, profile.LastName)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProgress(ctx context.Context, userID int64) (UserProgress, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return UserProgress{}, fmt.Errorf("ensure user %d: %w", userID, err)
	}

	var (
		progress      UserProgress
		followupIndex sql.NullInt64
		completedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT current_question_index, waiting_for_followup, followup_question_index,
		       completed, completed_at,
		       EXISTS (SELECT 1 FROM answers a WHERE a.user_id = u.user_id)
		FROM users u WHERE user_id = ?`, userID).Scan(
		&progress.CurrentQuestionIndex, &progress.WaitingForFollowup, &followupIndex,
		&progress.Completed, &completedAt, &progress.HasAnswers)
	if err != nil {
		return UserProgress{}, fmt.Errorf("get progress %d: %w", userID, err)
	}

	progress.UserID = userID
	if followupIndex.Valid {
		progress.FollowupQuestionIndex = int(followupIndex.Int64)
	}
	if completedAt.Valid {
		t := completedAt.Time
		progress.CompletedAt = &t
	}
	return progress, nil
}

func (s *SQLiteStore) RecordAnswer(ctx context.Context, userID int64, questionIndex int, questionText, value string, kind AnswerKind) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO answers (user_id, question_index, question_text, answer_value, answer_kind)
			VALUES (?, ?, ?, ?, ?)`,
			userID, questionIndex, questionText, value, string(kind))
		if err != nil {
			return fmt.Errorf("insert answer for user %d: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET current_question_index = ?
			WHERE user_id = ? AND waiting_for_followup = 0`,
			questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("advance user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) RecordPhoto(ctx context.Context, userID int64, questionIndex int, questionText string, photo PhotoUpload) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO photos (user_id, question_index, file_id, file_unique_id, file_size, caption)
			VALUES (?, ?, ?, ?, ?, ?)`,
			userID, questionIndex, photo.FileID, photo.FileUniqueID, photo.FileSize, photo.Caption)
		if err != nil {
			return fmt.Errorf("insert photo for user %d: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO answers (user_id, question_index, question_text, answer_value, answer_kind, media_ref)
			VALUES (?, ?, ?, 'Fotografie nahrána', 'photo', ?)`,
			userID, questionIndex, questionText, photo.FileID)
		if err != nil {
			return fmt.Errorf("insert photo answer for user %d: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET current_question_index = ?
			WHERE user_id = ? AND waiting_for_followup = 0`,
			questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("advance user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) EnterFollowupWait(ctx context.Context, userID int64, questionIndex int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET waiting_for_followup = 1, followup_question_index = ?
		WHERE user_id = ?`, questionIndex, userID)
	if err != nil {
		return fmt.Errorf("enter followup wait for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordFollowup(ctx context.Context, userID int64, questionIndex int, value string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE answers SET followup_value = ?
			WHERE id = (
				SELECT id FROM answers
				WHERE user_id = ? AND question_index = ?
				ORDER BY created_at DESC, id DESC LIMIT 1
			)`, value, userID, questionIndex)
		if err != nil {
			return fmt.Errorf("attach followup for user %d: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET waiting_for_followup = 0, followup_question_index = NULL,
			       current_question_index = ?
			WHERE user_id = ?`, questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("clear followup wait for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, userID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET completed = 1, completed_at = CURRENT_TIMESTAMP,
			       waiting_for_followup = 0, followup_question_index = NULL
			WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("mark completed for user %d: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM pending_prompts WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("clear pending prompt for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) ResetProgress(ctx context.Context, userID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM answers WHERE user_id = ?`,
			`DELETE FROM photos WHERE user_id = ?`,
			`DELETE FROM pending_prompts WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
				return fmt.Errorf("reset user %d: %w", userID, err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET current_question_index = 0, waiting_for_followup = 0,
			       followup_question_index = NULL, completed = 0, completed_at = NULL
			WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("reset progress for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) UserAnswers(ctx context.Context, userID int64) ([]AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question_index, question_text, answer_value, answer_kind,
		       media_ref, followup_value, created_at
		FROM answers WHERE user_id = ?
		ORDER BY question_index, created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers for user %d: %w", userID, err)
	}
	defer rows.Close()
	return scanAnswers(rows)
}

func (s *SQLiteStore) UserPhotos(ctx context.Context, userID int64) ([]PhotoRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question_index, file_id, file_unique_id, file_size, caption, uploaded_at
		FROM photos WHERE user_id = ?
		ORDER BY question_index, uploaded_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos for user %d: %w", userID, err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func (s *SQLiteStore) SetPendingPrompt(ctx context.Context, userID int64, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_prompts (user_id, token, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			token = excluded.token, message_ref = NULL, created_at = CURRENT_TIMESTAMP`,
		userID, token)
	if err != nil {
		return fmt.Errorf("set pending prompt for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) BindPromptMessage(ctx context.Context, userID int64, token, messageRef string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_prompts SET message_ref = ? WHERE user_id = ? AND token = ?`,
		messageRef, userID, token)
	if err != nil {
		return fmt.Errorf("bind prompt message for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) PendingPromptToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM pending_prompts WHERE user_id = ?`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pending prompt for user %d: %w", userID, err)
	}
	return token, nil
}

func (s *SQLiteStore) ClearPendingPrompt(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_prompts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear pending prompt for user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.TotalUsers},
		{`SELECT COUNT(*) FROM users WHERE completed = 1`, &stats.CompletedUsers},
		// A user is active once anything of theirs is on record: an advanced
		// index, a stored answer, or a prompt waiting for one.
		{`SELECT COUNT(*) FROM users u WHERE u.completed = 0 AND (
			u.current_question_index > 0
			OR EXISTS (SELECT 1 FROM answers a WHERE a.user_id = u.user_id)
			OR EXISTS (SELECT 1 FROM pending_prompts p WHERE p.user_id = u.user_id))`, &stats.ActiveUsers},
		{`SELECT COUNT(*) FROM photos`, &stats.TotalPhotos},
		{`SELECT COUNT(*) FROM answers WHERE answer_kind = 'photo' AND answer_value = '` + Skipped + `'`, &stats.SkippedPhotos},
		{`SELECT COUNT(*) FROM answers WHERE answer_kind = 'text' AND answer_value = '` + Skipped + `'`, &stats.SkippedText},
		{`SELECT COUNT(*) FROM answers WHERE followup_value = '` + Skipped + `'`, &stats.SkippedFollowups},
		{`SELECT COUNT(*) FROM answers WHERE question_index = 1 AND answer_value = 'Ano'`, &stats.SmokersCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Statistics{}, fmt.Errorf("statistics: %w", err)
		}
	}

	var avgAge sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(CAST(answer_value AS INTEGER)) FROM answers
		WHERE question_index = 0
		  AND answer_value GLOB '[0-9]*'
		  AND NOT answer_value GLOB '*[^0-9]*'
		  AND LENGTH(answer_value) <= 3
		  AND CAST(answer_value AS INTEGER) BETWEEN 1 AND 150`).Scan(&avgAge)
	if err != nil {
		return Statistics{}, fmt.Errorf("statistics: average age: %w", err)
	}
	if avgAge.Valid {
		stats.AverageAge = avgAge.Float64
	}

	if stats.TotalUsers > 0 {
		stats.CompletionRate = float64(stats.CompletedUsers) / float64(stats.TotalUsers)
	}
	return stats, nil
}

func (s *SQLiteStore) ExportUser(ctx context.Context, userID int64) (*Export, error) {
	export := &Export{UserID: userID, ExportedAt: time.Now().UTC()}

	var username, firstName, lastName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT username, first_name, last_name FROM users WHERE user_id = ?`, userID).
		Scan(&username, &firstName, &lastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export user %d: %w", userID, sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("export user %d: %w", userID, err)
	}
	export.Username = username.String
	export.FirstName = firstName.String
	export.LastName = lastName.String

	if export.Progress, err = s.GetProgress(ctx, userID); err != nil {
		return nil, err
	}
	if export.Answers, err = s.UserAnswers(ctx, userID); err != nil {
		return nil, err
	}
	if export.Photos, err = s.UserPhotos(ctx, userID); err != nil {
		return nil, err
	}
	return export, nil
}
