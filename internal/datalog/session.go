// Package datalog persists experiment bookkeeping: per-session
// parameter snapshots restored across restarts, and a SQLite index of
// recording episodes.
package datalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const configFileName = "config.json"

// SessionStore saves and restores session parameter snapshots in a
// directory. The snapshot is a nested string-keyed document, typically
// the live tracking and recorder parameters.
type SessionStore struct {
	dir string
}

// NewSessionStore validates that dir exists and returns a store rooted
// there.
func NewSessionStore(dir string) (*SessionStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "session directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("session path %s is not a directory", dir)
	}
	return &SessionStore{dir: dir}, nil
}

// SaveConfig writes the current parameter snapshot, replacing any
// previous one.
func (s *SessionStore) SaveConfig(params map[string]interface{}) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session config")
	}
	path := filepath.Join(s.dir, configFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write session config")
	}
	return nil
}

// Restore loads the previous snapshot and returns it only when its key
// structure matches current's exactly. A parameter added, removed or
// renamed between runs invalidates the saved values wholesale; stale
// values restored into a changed schema are worse than defaults. The
// second return is false when nothing was restored.
func (s *SessionStore) Restore(current map[string]interface{}) (map[string]interface{}, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, configFileName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read session config")
	}

	var saved map[string]interface{}
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, false, errors.Wrap(err, "parse session config")
	}

	if !sameKeys(current, saved) {
		return nil, false, nil
	}
	return saved, true, nil
}

// SaveLog writes a timestamped metadata document alongside the config,
// one per experiment run.
func (s *SessionStore) SaveLog(meta map[string]interface{}, ts time.Time) (string, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode session log")
	}
	name := ts.Format("20060102_150405") + "_metadata.json"
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write session log")
	}
	return path, nil
}

// sameKeys compares the key structure of two nested documents,
// ignoring leaf values.
func sameKeys(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		am, aIsMap := av.(map[string]interface{})
		bm, bIsMap := bv.(map[string]interface{})
		if aIsMap != bIsMap {
			return false
		}
		if aIsMap && !sameKeys(am, bm) {
			return false
		}
	}
	return true
}
