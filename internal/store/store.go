package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lappka/lappka/internal/model"

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
	if dbPath == ":memory:" {
		// Every new connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
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
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'teacher',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		sha256 TEXT NOT NULL UNIQUE,
		uploaded_at DATETIME NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS question_banks (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		base_category TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		UNIQUE (dataset_id, sha256),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DatasetSummary is a dataset row without its parsed questions.
type DatasetSummary struct {
	ID            string
	Filename      string
	Format        model.Format
	SHA256        string
	UploadedAt    time.Time
	QuestionCount int
}

// SaveDataset stores a parsed export. A file with the same checksum is parsed
// only once: the stored dataset is returned and created is false.
func (s *Store) SaveDataset(ds *model.Dataset) (stored *model.Dataset, created bool, err error) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.UploadedAt.IsZero() {
		ds.UploadedAt = time.Now()
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return nil, false, fmt.Errorf("marshal dataset: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO datasets (id, filename, format, sha256, uploaded_at, question_count, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sha256) DO NOTHING`,
		ds.ID, ds.Filename, ds.Format, ds.SHA256, ds.UploadedAt, len(model.Subquestions(ds.Questions)), string(data),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert dataset: %w", err)
	}
	if n == 0 {
		existing, err := s.GetDatasetBySHA256(ds.SHA256)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("dataset %s vanished after conflict", ds.SHA256)
		}
		slog.Debug("dataset already stored", "id", existing.ID, "sha256", ds.SHA256)
		return existing, false, nil
	}
	slog.Info("stored dataset", "id", ds.ID, "filename", ds.Filename, "questions", len(ds.Questions))
	return ds, true, nil
}

// GetDataset returns a dataset by ID, or nil if it does not exist.
func (s *Store) GetDataset(id string) (*model.Dataset, error) {
	return s.scanDataset(s.db.QueryRow(`SELECT data FROM datasets WHERE id = ?`, id))
}

// GetDatasetBySHA256 returns the dataset parsed from a file with the given
// checksum, or nil.
func (s *Store) GetDatasetBySHA256(sum string) (*model.Dataset, error) {
	return s.scanDataset(s.db.QueryRow(`SELECT data FROM datasets WHERE sha256 = ?`, sum))
}

func (s *Store) scanDataset(row *sql.Row) (*model.Dataset, error) {
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ds model.Dataset
	if err := json.Unmarshal([]byte(data), &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return &ds, nil
}

// ListDatasets returns all datasets, newest first.
func (s *Store) ListDatasets() ([]DatasetSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, filename, format, sha256, uploaded_at, question_count
		 FROM datasets ORDER BY uploaded_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DatasetSummary
	for rows.Next() {
		var d DatasetSummary
		if err := rows.Scan(&d.ID, &d.Filename, &d.Format, &d.SHA256, &d.UploadedAt, &d.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset with its banks and cached advice.
func (s *Store) DeleteDataset(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM question_banks WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM app_metadata WHERE key LIKE ?`, adviceKeyPrefix(id)+"%"); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DatasetCount returns the number of stored datasets.
func (s *Store) DatasetCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM datasets`).Scan(&count)
	return count, err
}
