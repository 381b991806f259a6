// Package jobstore records per-document processing outcome on the local
// filesystem. There is no separate index: presence of an error marker means
// failed, presence of the markdown artifact means ready, neither means the
// background conversion is still running. Artifacts are namespaced by docID
// so concurrent jobs never share state.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// FailureRecord is the structured error artifact written for a failed job.
type FailureRecord struct {
	Error      string    `json:"error"`
	ErrorType  string    `json:"error_type"`
	Timestamp  time.Time `json:"timestamp"`
	DocID      string    `json:"doc_id"`
	SourcePath string    `json:"source_path"`
	Traceback  string    `json:"traceback"`
}

// Store persists conversion results under a single base directory:
// markdown/{docID}.md, markdown/{docID}.error and images/{docID}/*.png.
type Store struct {
	basePath string
	log      zerolog.Logger
}

// New initializes a Store rooted at basePath.
func New(basePath string, log zerolog.Logger) (*Store, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("jobstore: base path is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "markdown"), 0o755); err != nil {
		return nil, fmt.Errorf("jobstore: ensure markdown dir: %w", err)
	}
	return &Store{basePath: basePath, log: log}, nil
}

// BasePath returns the configured root directory. Converters write their
// image output relative to it.
func (s *Store) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// WriteMarkdown persists the conversion result and thereby moves the job to
// ready. The write is atomic (temp file + rename) so a reader never observes
// a partial artifact.
func (s *Store) WriteMarkdown(docID string, content []byte) error {
	if err := validateDocID(docID); err != nil {
		return err
	}
	path := s.markdownPath(docID)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+docID+"-*")
	if err != nil {
		return fmt.Errorf("jobstore: create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("jobstore: write markdown: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jobstore: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jobstore: publish markdown: %w", err)
	}
	s.log.Info().Str("doc_id", docID).Int("bytes", len(content)).Msg("markdown persisted")
	return nil
}

// WriteFailure persists the structured error marker and thereby moves the
// job to failed. The marker takes precedence over any partially-written
// markdown.
func (s *Store) WriteFailure(docID, sourcePath, errorType string, cause error) error {
	if err := validateDocID(docID); err != nil {
		return err
	}
	record := FailureRecord{
		Error:      cause.Error(),
		ErrorType:  errorType,
		Timestamp:  time.Now().UTC(),
		DocID:      docID,
		SourcePath: sourcePath,
		Traceback:  string(debug.Stack()),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("jobstore: marshal failure record: %w", err)
	}
	if err := os.WriteFile(s.errorPath(docID), data, 0o644); err != nil {
		return fmt.Errorf("jobstore: write failure record: %w", err)
	}
	s.log.Error().Str("doc_id", docID).Str("error_type", errorType).Err(cause).Msg("failure persisted")
	return nil
}

// Status derives the job state from filesystem presence alone. The error
// marker wins over the markdown artifact.
func (s *Store) Status(docID string) domain.DocumentStatus {
	if validateDocID(docID) != nil {
		return domain.StatusProcessing
	}
	if _, err := os.Stat(s.errorPath(docID)); err == nil {
		return domain.StatusFailed
	}
	if _, err := os.Stat(s.markdownPath(docID)); err == nil {
		return domain.StatusReady
	}
	return domain.StatusProcessing
}

// ReadMarkdown returns the persisted markdown, or domain.ErrNotFound while
// the job has not reached ready.
func (s *Store) ReadMarkdown(docID string) ([]byte, error) {
	if err := validateDocID(docID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.markdownPath(docID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	return data, err
}

// ReadFailure returns the failure record, or domain.ErrNotFound when the job
// has not failed.
func (s *Store) ReadFailure(docID string) (*FailureRecord, error) {
	if err := validateDocID(docID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.errorPath(docID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("jobstore: decode failure record: %w", err)
	}
	return &record, nil
}

// ImagePath resolves the on-disk path for one named figure, refusing names
// that could escape the document's image directory.
func (s *Store) ImagePath(docID, name string) (string, error) {
	if err := validateDocID(docID); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", domain.ErrNotFound
	}
	return filepath.Join(s.imageDir(docID), name+".png"), nil
}

// ListImages returns the document's figure names (without extension) in
// img_001, img_002, ... order.
func (s *Store) ListImages(docID string) []string {
	if validateDocID(docID) != nil {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.imageDir(docID), "img_*.png"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".png"))
	}
	sort.Strings(names)
	return names
}

// Delete removes every artifact derived from the document.
func (s *Store) Delete(docID string) error {
	if err := validateDocID(docID); err != nil {
		return err
	}
	var errs []error
	for _, path := range []string{s.markdownPath(docID), s.errorPath(docID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(s.imageDir(docID)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) markdownPath(docID string) string {
	return filepath.Join(s.basePath, "markdown", docID+".md")
}

func (s *Store) errorPath(docID string) string {
	return filepath.Join(s.basePath, "markdown", docID+".error")
}

func (s *Store) imageDir(docID string) string {
	return filepath.Join(s.basePath, "images", docID)
}

// validateDocID rejects ids that could escape the store's directory layout.
func validateDocID(docID string) error {
	if docID == "" || strings.ContainsAny(docID, `/\`) || strings.Contains(docID, "..") {
		return domain.ErrInvalidDocID
	}
	return nil
}
