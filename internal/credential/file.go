package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the credentials directory.
const DirPerms = 0o700

// File is the on-disk format for credential files. Meta caches small API
// facts (channel ID and title) so whoami does not need a round trip.
type File struct {
	Credential *Credential       `json:"credential"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// ReadFile reads a saved credential file. Returns (nil, nil, nil) if the file
// does not exist.
func ReadFile(path string) (*Credential, map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, nil, fmt.Errorf("credential: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("credential: decoding %s: %w", path, err)
	}

	if f.Credential == nil {
		return nil, nil, fmt.Errorf("credential: %s missing credential field (re-login required)", path)
	}

	return f.Credential, f.Meta, nil
}

// WriteFile writes a credential file atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func WriteFile(path string, cred *Credential, meta map[string]string) error {
	data, err := json.MarshalIndent(File{Credential: cred, Meta: meta}, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("credential: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("credential: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: writing: %w", err)
	}

	// Flush before rename so a crash cannot leave a partial file at path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credential: renaming: %w", err)
	}

	success = true

	return nil
}

// FileStore is a Store backed by a single JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a FileStore for the given path. The file is not
// touched until Load or Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential. Any failure is logged and reported as absent.
func (s *FileStore) Load() (*Credential, bool) {
	cred, _, err := ReadFile(s.path)
	if err != nil {
		s.logger.Warn("ignoring unreadable credential file",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	if cred == nil {
		return nil, false
	}

	return cred, true
}

// Save replaces the stored credential, keeping any cached metadata.
func (s *FileStore) Save(cred *Credential) error {
	if cred == nil {
		return errors.New("credential: refusing to save nil credential")
	}

	meta, err := s.LoadMeta()
	if err != nil {
		// A corrupt previous file must not block writing a fresh credential.
		s.logger.Debug("dropping unreadable metadata", slog.String("error", err.Error()))

		meta = nil
	}

	return WriteFile(s.path, cred, meta)
}

// Exists reports whether the backing file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Remove deletes the credential file. Missing file is not an error.
func (s *FileStore) Remove() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("credential: removing %s: %w", s.path, err)
	}

	return nil
}

// LoadMeta reads only the metadata. Returns nil metadata if the file does
// not exist.
func (s *FileStore) LoadMeta() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", s.path, err)
	}

	var parsed struct {
		Meta map[string]string `json:"meta"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("credential: decoding %s: %w", s.path, err)
	}

	return parsed.Meta, nil
}

// SaveMeta merges meta into the stored metadata (new keys win). The
// credential must already exist.
func (s *FileStore) SaveMeta(meta map[string]string) error {
	cred, existing, err := ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading credential for metadata update: %w", err)
	}

	if cred == nil {
		return fmt.Errorf("no credential file at %s", s.path)
	}

	if existing == nil {
		existing = make(map[string]string, len(meta))
	}

	maps.Copy(existing, meta)

	return WriteFile(s.path, cred, existing)
}
