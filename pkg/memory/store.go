package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
	"github.com/odvcencio/redline/pkg/storage"
)

// Store round-trips the edit memory log and preference record through
// durable storage, keyed per (owner, repo).
type Store struct {
	db *storage.Store
}

// NewStore wraps a storage handle.
func NewStore(db *storage.Store) *Store {
	return &Store{db: db}
}

func memoryKey(owner, repo string) string {
	return fmt.Sprintf("editMemory_%s_%s", owner, repo)
}

func preferencesKey(owner, repo string) string {
	return fmt.Sprintf("userPreferences_%s_%s", owner, repo)
}

// LoadLog loads the persisted turn log. Missing or corrupt storage yields
// an empty log rather than an error.
func (s *Store) LoadLog(owner, repo string) *Log {
	raw, err := s.db.Get(memoryKey(owner, repo))
	if err != nil {
		return NewLog()
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return NewLog()
	}
	return NewLogFromTurns(turns)
}

// PersistLog writes the turn log.
func (s *Store) PersistLog(owner, repo string, log *Log) error {
	data, err := json.Marshal(log.Turns())
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "encoding edit memory")
	}
	if err := s.db.Set(memoryKey(owner, repo), string(data)); err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "persisting edit memory")
	}
	return nil
}

// LoadPreferences loads the persisted preference record. Missing or corrupt
// storage yields a zero record.
func (s *Store) LoadPreferences(owner, repo string) Preferences {
	raw, err := s.db.Get(preferencesKey(owner, repo))
	if err != nil {
		return Preferences{}
	}

	var prefs Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Preferences{}
	}
	return prefs
}

// PersistPreferences writes the preference record.
func (s *Store) PersistPreferences(owner, repo string, prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "encoding preferences")
	}
	if err := s.db.Set(preferencesKey(owner, repo), string(data)); err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeStorageWrite, "persisting preferences")
	}
	return nil
}

// Clear removes the durable copies of both the log and the preferences.
func (s *Store) Clear(owner, repo string) error {
	var errs []error
	if err := s.db.Delete(memoryKey(owner, repo)); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Delete(preferencesKey(owner, repo)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return rlerrors.Wrap(errors.Join(errs...), rlerrors.ErrCodeStorageWrite, "clearing edit memory")
	}
	return nil
}
