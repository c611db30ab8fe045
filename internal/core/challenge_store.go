package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChallengeStore persists the last server-issued nonce to a single file so
// the next connection attempt can skip the handshake round trip (§4.4,
// §6 "a single-file challenge blob storing the last server nonce").
// Adapted from the teacher's timestamped-resume-file idea, simplified to
// the single always-current file the spec calls for.
type ChallengeStore struct {
	path string
}

// NewChallengeStore targets the given file path.
func NewChallengeStore(path string) *ChallengeStore {
	return &ChallengeStore{path: path}
}

// Load reads the persisted nonce, or (nil, false) if no challenge file
// exists yet (first connection).
func (s *ChallengeStore) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("core: reading challenge file: %w", err)
	}
	return data, true, nil
}

// Save atomically overwrites the challenge file with nonce: write to a
// temp file in the same directory, then rename over the target, so a crash
// mid-write never corrupts the previous value (§9 open question (c): a
// safer implementation persists before advancing the state machine, so
// Save is called before the transition to LoggedIn completes).
func (s *ChallengeStore) Save(nonce []byte) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("core: creating challenge directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".challenge-*")
	if err != nil {
		return fmt.Errorf("core: creating temp challenge file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(nonce); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("core: writing temp challenge file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("core: closing temp challenge file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("core: renaming temp challenge file: %w", err)
	}
	return nil
}
