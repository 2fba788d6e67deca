package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lappka/lappka/internal/model"
)

// SaveBank stores a parsed GIFT bank for a dataset. Uploading the same file
// for the same dataset again returns the stored bank.
func (s *Store) SaveBank(b *model.Bank) (*model.Bank, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.UploadedAt.IsZero() {
		b.UploadedAt = time.Now()
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bank: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO question_banks (id, dataset_id, filename, sha256, uploaded_at, base_category, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dataset_id, sha256) DO NOTHING`,
		b.ID, b.DatasetID, b.Filename, b.SHA256, b.UploadedAt, b.BaseCategory, string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("insert bank: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert bank: %w", err)
	}
	if n == 0 {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM question_banks WHERE dataset_id = ? AND sha256 = ?`, b.DatasetID, b.SHA256,
		).Scan(&existingID)
		if err != nil {
			return nil, err
		}
		return s.GetBank(existingID)
	}
	slog.Info("stored question bank", "id", b.ID, "dataset", b.DatasetID, "questions", len(b.Questions))
	return b, nil
}

// GetBank returns a bank by ID, or nil if it does not exist.
func (s *Store) GetBank(id string) (*model.Bank, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM question_banks WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b model.Bank
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	return &b, nil
}

// LatestBank returns the most recently uploaded bank of a dataset, or nil.
func (s *Store) LatestBank(datasetID string) (*model.Bank, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM question_banks WHERE dataset_id = ? ORDER BY uploaded_at DESC LIMIT 1`, datasetID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetBank(id)
}
