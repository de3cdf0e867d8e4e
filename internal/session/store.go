package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"odinbots/internal/domain"
	"odinbots/internal/identity"
)

// FileStore persists session records on disk, one JSON file per bot:
// session_<bot>.json, or session_<bot>_<network>.json off the production
// network. Files are owner-only and written atomically so a crash mid-write
// never leaves a partial record that is later read as valid.
type FileStore struct {
	dir     string
	network string
	mu      sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir for the given network.
func NewFileStore(dir, network string) *FileStore {
	return &FileStore{dir: dir, network: network}
}

var _ domain.SessionStore = (*FileStore)(nil)

// Path returns the record file for bot.
func (s *FileStore) Path(bot domain.BotName) string {
	name := "session_" + identity.SafeFileName(bot)
	if s.network != "" && s.network != "prd" {
		name += "_" + s.network
	}
	return filepath.Join(s.dir, name+".json")
}

// Load reads the record for bot. A missing file is (zero, false, nil); an
// unreadable or incomplete file is reported as ErrCorruptSessionRecord so
// the cache can discard it and re-authenticate instead of crashing.
func (s *FileStore) Load(bot domain.BotName) (domain.SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.Path(bot))
	if errors.Is(err, os.ErrNotExist) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, err
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("%w: %v", domain.ErrCorruptSessionRecord, err)
	}
	if !rec.Complete() || rec.BotName != bot {
		return domain.SessionRecord{}, false, fmt.Errorf("%w: incomplete record for %s", domain.ErrCorruptSessionRecord, bot)
	}
	return rec, true, nil
}

// Save writes the record via a temp file then an atomic rename, 0600.
func (s *FileStore) Save(rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path(rec.BotName), b, 0o600)
}

// Delete removes the record for bot. Missing records are not an error.
func (s *FileStore) Delete(bot domain.BotName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path(bot))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeFileAtomic stages the record in a temp file in the same directory,
// then renames it over path. Readers see either the old record or the new
// one in full, never a torn write.
func writeFileAtomic(path string, b []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	_, werr := tmp.Write(b)
	if werr == nil {
		werr = tmp.Chmod(mode)
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), werr)
	}
	return os.Rename(name, path)
}
