package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileSettingsStore keeps Settings as a small YAML document.
type fileSettingsStore struct {
	path string
}

func newFileSettingsStore(path string) *fileSettingsStore {
	return &fileSettingsStore{path: ExpandPath(path)}
}

func (f *fileSettingsStore) Path() string { return f.path }

// Load returns the stored settings over DefaultSettings. A missing file is
// not an error; found reports whether one existed.
func (f *fileSettingsStore) Load() (s Settings, found bool, err error) {
	s = DefaultSettings()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("read settings: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return DefaultSettings(), true, fmt.Errorf("decode settings %s: %w", f.path, err)
	}
	if s.Brightness < 0 || s.Brightness > 100 {
		return DefaultSettings(), true, fmt.Errorf("settings %s: brightness %d out of range", f.path, s.Brightness)
	}
	return s, true, nil
}

// Save writes s via a temp file and rename so a crash never leaves a torn file.
func (f *fileSettingsStore) Save(s Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Remove deletes the settings file. A missing file is not an error.
func (f *fileSettingsStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove settings: %w", err)
	}
	return nil
}
