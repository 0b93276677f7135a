package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carebot/internal/providers"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger providers.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id BIGINT PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	current_question_index INTEGER NOT NULL DEFAULT 0,
	waiting_for_followup BOOLEAN NOT NULL DEFAULT FALSE,
	followup_question_index INTEGER,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS answers (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	question_index INTEGER NOT NULL,
	question_text TEXT NOT NULL,
	answer_value TEXT NOT NULL,
	answer_kind TEXT NOT NULL DEFAULT 'text',
	media_ref TEXT,
	followup_value TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS photos (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	question_index INTEGER NOT NULL,
	file_id TEXT NOT NULL,
	file_unique_id TEXT,
	file_size BIGINT,
	caption TEXT,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS pending_prompts (
	user_id BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	token TEXT NOT NULL,
	message_ref TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_answers_user ON answers (user_id);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers (question_index);
CREATE INDEX IF NOT EXISTS idx_photos_user ON photos (user_id);
`

func NewPostgresStore(dsn string, logger providers.Logger) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}

	logger.Infof(providers.TypeStore, "Postgres store ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Errorf(providers.TypeStore, "rollback failed: %s", rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) UpsertUser(ctx context.Context, userID int64, profile UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name`,
		userID, profile.Username, profile.FirstName, profile.LastName)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, userID int64) (UserProgress, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return UserProgress{}, fmt.Errorf("ensure user %d: %w", userID, err)
	}

	var (
		progress      UserProgress
		followupIndex *int
		completedAt   *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT current_question_index, waiting_for_followup, followup_question_index,
		       completed, completed_at,
		       EXISTS (SELECT 1 FROM answers a WHERE a.user_id = u.user_id)
		FROM users u WHERE user_id = $1`, userID).Scan(
		&progress.CurrentQuestionIndex, &progress.WaitingForFollowup, &followupIndex,
		&progress.Completed, &completedAt, &progress.HasAnswers)
	if err != nil {
		return UserProgress{}, fmt.Errorf("get progress %d: %w", userID, err)
	}

	progress.UserID = userID
	if followupIndex != nil {
		progress.FollowupQuestionIndex = *followupIndex
	}
	progress.CompletedAt = completedAt
	return progress, nil
}

func (s *PostgresStore) RecordAnswer(ctx context.Context, userID int64, questionIndex int, questionText, value string, kind AnswerKind) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO answers (user_id, question_index, question_text, answer_value, answer_kind)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, questionIndex, questionText, value, string(kind))
		if err != nil {
			return fmt.Errorf("insert answer for user %d: %w", userID, err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE users SET current_question_index = $1
			WHERE user_id = $2 AND waiting_for_followup = FALSE`,
			questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("advance user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *PostgresStore) RecordPhoto(ctx context.Context, userID int64, questionIndex int, questionText string, photo PhotoUpload) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO photos (user_id, question_index, file_id, file_unique_id, file_size, caption)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, questionIndex, photo.FileID, photo.FileUniqueID, photo.FileSize, photo.Caption)
		if err != nil {
			return fmt.Errorf("insert photo for user %d: %w", userID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO answers (user_id, question_index, question_text, answer_value, answer_kind, media_ref)
			VALUES ($1, $2, $3, 'Fotografie nahrána', 'photo', $4)`,
			userID, questionIndex, questionText, photo.FileID)
		if err != nil {
			return fmt.Errorf("insert photo answer for user %d: %w", userID, err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE users SET current_question_index = $1
			WHERE user_id = $2 AND waiting_for_followup = FALSE`,
			questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("advance user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *PostgresStore) EnterFollowupWait(ctx context.Context, userID int64, questionIndex int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET waiting_for_followup = TRUE, followup_question_index = $1
		WHERE user_id = $2`, questionIndex, userID)
	if err != nil {
		return fmt.Errorf("enter followup wait for user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) RecordFollowup(ctx context.Context, userID int64, questionIndex int, value string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE answers SET followup_value = $1
			WHERE id = (
				SELECT id FROM answers
				WHERE user_id = $2 AND question_index = $3
				ORDER BY created_at DESC, id DESC LIMIT 1
			)`, value, userID, questionIndex)
		if err != nil {
			return fmt.Errorf("attach followup for user %d: %w", userID, err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE users SET waiting_for_followup = FALSE, followup_question_index = NULL,
			       current_question_index = $1
			WHERE user_id = $2`, questionIndex+1, userID)
		if err != nil {
			return fmt.Errorf("clear followup wait for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, userID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE users SET completed = TRUE, completed_at = NOW(),
			       waiting_for_followup = FALSE, followup_question_index = NULL
			WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("mark completed for user %d: %w", userID, err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM pending_prompts WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("clear pending prompt for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *PostgresStore) ResetProgress(ctx context.Context, userID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM answers WHERE user_id = $1`,
			`DELETE FROM photos WHERE user_id = $1`,
			`DELETE FROM pending_prompts WHERE user_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, userID); err != nil {
				return fmt.Errorf("reset user %d: %w", userID, err)
			}
		}
		_, err := tx.Exec(ctx, `
			UPDATE users SET current_question_index = 0, waiting_for_followup = FALSE,
			       followup_question_index = NULL, completed = FALSE, completed_at = NULL
			WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("reset progress for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *PostgresStore) UserAnswers(ctx context.Context, userID int64) ([]AnswerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, question_index, question_text, answer_value, answer_kind,
		       media_ref, followup_value, created_at
		FROM answers WHERE user_id = $1
		ORDER BY question_index, created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers for user %d: %w", userID, err)
	}
	defer rows.Close()

	var records []AnswerRecord
	for rows.Next() {
		var (
			rec      AnswerRecord
			kind     string
			mediaRef *string
			followup *string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuestionIndex, &rec.QuestionText,
			&rec.Value, &kind, &mediaRef, &followup, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		rec.Kind = AnswerKind(kind)
		if mediaRef != nil {
			rec.MediaRef = *mediaRef
		}
		rec.FollowupValue = followup
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) UserPhotos(ctx context.Context, userID int64) ([]PhotoRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, question_index, file_id, file_unique_id, file_size, caption, uploaded_at
		FROM photos WHERE user_id = $1
		ORDER BY question_index, uploaded_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos for user %d: %w", userID, err)
	}
	defer rows.Close()

	var records []PhotoRecord
	for rows.Next() {
		var (
			rec      PhotoRecord
			uniqueID *string
			size     *int64
			caption  *string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuestionIndex, &rec.FileID,
			&uniqueID, &size, &caption, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if uniqueID != nil {
			rec.FileUniqueID = *uniqueID
		}
		if size != nil {
			rec.FileSize = *size
		}
		if caption != nil {
			rec.Caption = *caption
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) SetPendingPrompt(ctx context.Context, userID int64, token string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_prompts (user_id, token, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token, message_ref = NULL, created_at = NOW()`,
		userID, token)
	if err != nil {
		return fmt.Errorf("set pending prompt for user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) BindPromptMessage(ctx context.Context, userID int64, token, messageRef string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pending_prompts SET message_ref = $1 WHERE user_id = $2 AND token = $3`,
		messageRef, userID, token)
	if err != nil {
		return fmt.Errorf("bind prompt message for user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) PendingPromptToken(ctx context.Context, userID int64) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM pending_prompts WHERE user_id = $1`, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pending prompt for user %d: %w", userID, err)
	}
	return token, nil
}

func (s *PostgresStore) ClearPendingPrompt(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_prompts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear pending prompt for user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.TotalUsers},
		{`SELECT COUNT(*) FROM users WHERE completed`, &stats.CompletedUsers},
		// A user is active once anything of theirs is on record: an advanced
		// index, a stored answer, or a prompt waiting for one.
		{`SELECT COUNT(*) FROM users u WHERE NOT u.completed AND (
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
		if err := s.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return Statistics{}, fmt.Errorf("statistics: %w", err)
		}
	}

	var avgAge *float64
	err := s.pool.QueryRow(ctx, `
		SELECT AVG(answer_value::INTEGER) FROM answers
		WHERE question_index = 0
		  AND answer_value ~ '^[0-9]{1,3}$'
		  AND answer_value::INTEGER BETWEEN 1 AND 150`).Scan(&avgAge)
	if err != nil {
		return Statistics{}, fmt.Errorf("statistics: average age: %w", err)
	}
	if avgAge != nil {
		stats.AverageAge = *avgAge
	}

	if stats.TotalUsers > 0 {
		stats.CompletionRate = float64(stats.CompletedUsers) / float64(stats.TotalUsers)
	}
	return stats, nil
}

func (s *PostgresStore) ExportUser(ctx context.Context, userID int64) (*Export, error) {
	export := &Export{UserID: userID, ExportedAt: time.Now().UTC()}

	var username, firstName, lastName *string
	err := s.pool.QueryRow(ctx,
		`SELECT username, first_name, last_name FROM users WHERE user_id = $1`, userID).
		Scan(&username, &firstName, &lastName)
	if err != nil {
		return nil, fmt.Errorf("export user %d: %w", userID, err)
	}
	if username != nil {
		export.Username = *username
	}
	if firstName != nil {
		export.FirstName = *firstName
	}
	if lastName != nil {
		export.LastName = *lastName
	}

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
