// internal/infra/statestore/marker.go
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"causelist_notification_bot/internal/domain/schedule"
)

const markerLayout = "2006-01-02"

// FileMarkerStore persists the last-sent date as a single plain-date line.
// Overwrites go through a temp file and rename so a concurrent reader sees
// either the prior date or the new one, never a partial write.
type FileMarkerStore struct {
	path string
}

func NewFileMarkerStore(path string) *FileMarkerStore {
	return &FileMarkerStore{path: path}
}

// LastSent reads the marker. schedule.ErrMarkerNotFound signals that no send
// was ever recorded.
func (s *FileMarkerStore) LastSent() (time.Time, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return time.Time{}, schedule.ErrMarkerNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read marker %s: %w", s.path, err)
	}

	day, err := time.Parse(markerLayout, strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed marker %s: %w", s.path, err)
	}
	return day, nil
}

// RecordSent overwrites the marker with day's calendar date.
func (s *FileMarkerStore) RecordSent(day time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".last_sent-*")
	if err != nil {
		return fmt.Errorf("create marker temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.WriteString(day.Format(markerLayout) + "\n")
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("write marker temp file: %w", werr)
		}
		return fmt.Errorf("close marker temp file: %w", cerr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace marker %s: %w", s.path, err)
	}
	return nil
}
