// Package persist stores per-session thread snapshots as JSON files under
// the state directory, one file per session, written atomically.
package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/shellpilot/schema"
)

// ThreadSnapshot captures the durable part of a session's agent state.
// Transient steps (thinking indicators, unfinalized streaming) are stripped
// by the caller before saving.
type ThreadSnapshot struct {
	Steps       []schema.AgentStep `json:"steps"`
	History     []string           `json:"history,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Summarized  bool               `json:"summarized,omitempty"`
	AlwaysAllow bool               `json:"always_allow,omitempty"`
}

// Store persists session snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a session snapshot from disk.
func (s *Store) Load(sessionID schema.SessionID) (ThreadSnapshot, bool, error) {
	path := s.pathForSession(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "session", sessionID)
			}
			return ThreadSnapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "session", sessionID, "err", err)
		}
		return ThreadSnapshot{}, false, err
	}
	var snapshot ThreadSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "session", sessionID, "err", err)
		}
		return ThreadSnapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "session", sessionID, "steps", len(snapshot.Steps))
	}
	return snapshot, true, nil
}

// Save writes a session snapshot to disk atomically.
func (s *Store) Save(sessionID schema.SessionID, snapshot ThreadSnapshot) error {
	path := s.pathForSession(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return s.saveFailed(sessionID, err)
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return s.saveFailed(sessionID, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return s.saveFailed(sessionID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(sessionID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(sessionID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(sessionID, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(sessionID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return s.saveFailed(sessionID, err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "session", sessionID, "steps", len(snapshot.Steps))
	}
	return nil
}

// Delete removes a session snapshot. A missing file is not an error.
func (s *Store) Delete(sessionID schema.SessionID) error {
	err := os.Remove(s.pathForSession(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) saveFailed(sessionID schema.SessionID, err error) error {
	if s.log != nil {
		s.log.Warn("state save failed", "session", sessionID, "err", err)
	}
	return err
}

func (s *Store) pathForSession(sessionID schema.SessionID) string {
	name := sanitize(string(sessionID))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
