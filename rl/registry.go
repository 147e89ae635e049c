// Package rl carries the reinforcement-learning bookkeeping: an on-disk
// model version registry with promote/rollback, a pluggable trainer
// interface, and a retrain scheduler that records runs in the rl_training
// table. Training itself happens outside this process; no reward or
// update math lives here.
package rl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Pointer files inside the model directory.
const (
	currentPointer  = "CURRENT"
	previousPointer = "PREVIOUS"
)

// Registry tracks model versions in a directory. Each version is a file
// or subdirectory; CURRENT and PREVIOUS are single-line pointer files.
type Registry struct {
	mu  sync.Mutex
	dir string
}

func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	return &Registry{dir: dir}, nil
}

// Current returns the promoted model version, or "" when none is set.
func (r *Registry) Current() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readPointer(currentPointer)
}

// Versions lists the model versions present in the directory.
func (r *Registry) Versions() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read model dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if name == currentPointer || name == previousPointer {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Promote points CURRENT at a version, remembering the prior one for
// rollback. The version must exist in the model directory.
func (r *Registry) Promote(version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(filepath.Join(r.dir, version)); err != nil {
		return fmt.Errorf("model version %s: %w", version, err)
	}

	prev, err := r.readPointer(currentPointer)
	if err != nil {
		return err
	}
	if prev != "" {
		if err := r.writePointer(previousPointer, prev); err != nil {
			return err
		}
	}
	return r.writePointer(currentPointer, version)
}

// Rollback swaps CURRENT back to the previously promoted version.
func (r *Registry) Rollback() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.readPointer(previousPointer)
	if err != nil {
		return err
	}
	if prev == "" {
		return fmt.Errorf("no previous model version to roll back to")
	}

	cur, err := r.readPointer(currentPointer)
	if err != nil {
		return err
	}
	if err := r.writePointer(currentPointer, prev); err != nil {
		return err
	}
	return r.writePointer(previousPointer, cur)
}

func (r *Registry) readPointer(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s pointer: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writePointer replaces a pointer file atomically.
func (r *Registry) writePointer(name, version string) error {
	path := filepath.Join(r.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(version+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s pointer: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s pointer: %w", name, err)
	}
	return nil
}
