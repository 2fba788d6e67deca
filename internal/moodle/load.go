package moodle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lappka/lappka/internal/model"
)

var (
	// ErrUnsupportedFormat is returned when a file is loaded as the wrong kind,
	// e.g. a GIFT bank uploaded as statistics.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyBank is returned for a GIFT file without any ::name:: question.
	ErrEmptyBank = errors.New("no questions found in GIFT file")
)

// DetectFormat picks the parser by file extension. Anything that is neither
// HTML nor GIFT is treated as CSV.
func DetectFormat(name string) model.Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return model.FormatHTML
	case ".gift", ".txt":
		return model.FormatGIFT
	default:
		return model.FormatCSV
	}
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// LoadDataset parses a statistics export (HTML or CSV).
func LoadDataset(name string, data []byte) (*model.Dataset, error) {
	ds := &model.Dataset{
		Filename:   filepath.Base(name),
		Format:     DetectFormat(name),
		SHA256:     Checksum(data),
		UploadedAt: time.Now().UTC(),
	}

	var err error
	switch ds.Format {
	case model.FormatHTML:
		ds.Questions, ds.TestInfo, err = ParseHTML(data)
	case model.FormatCSV:
		ds.Questions, err = ParseCSV(data)
	default:
		return nil, fmt.Errorf("%s: %w: expected HTML or CSV statistics", ds.Filename, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.Filename, err)
	}
	return ds, nil
}

// LoadBank parses a GIFT question bank.
func LoadBank(name string, data []byte) (*model.Bank, error) {
	if DetectFormat(name) != model.FormatGIFT {
		return nil, fmt.Errorf("%s: %w: expected a .gift or .txt file", name, ErrUnsupportedFormat)
	}
	base, questions := ParseGIFT(string(data))
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyBank)
	}
	return &model.Bank{
		Filename:     filepath.Base(name),
		SHA256:       Checksum(data),
		UploadedAt:   time.Now().UTC(),
		BaseCategory: base,
		Questions:    questions,
	}, nil
}
