package store

import (
	"database/sql"
	"fmt"
)

func scanAnswers(rows *sql.Rows) ([]AnswerRecord, error) {
	var records []AnswerRecord
	for rows.Next() {
		var (
			rec      AnswerRecord
			kind     string
			mediaRef sql.NullString
			followup sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuestionIndex, &rec.QuestionText,
			&rec.Value, &kind, &mediaRef, &followup, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		rec.Kind = AnswerKind(kind)
		rec.MediaRef = mediaRef.String
		if followup.Valid {
			v := followup.String
			rec.FollowupValue = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return records, nil
}

func scanPhotos(rows *sql.Rows) ([]PhotoRecord, error) {
	var records []PhotoRecord
	for rows.Next() {
		var (
			rec      PhotoRecord
			uniqueID sql.NullString
			size     sql.NullInt64
			caption  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuestionIndex, &rec.FileID,
			&uniqueID, &size, &caption, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		rec.FileUniqueID = uniqueID.String
		rec.FileSize = size.Int64
		rec.Caption = caption.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return records, nil
}
