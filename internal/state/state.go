// Package state persists the disk images zortoshub left attached, so a later
// `zortoshub cleanup` can detach volumes orphaned by a crash or a kept mount.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"zortoshub/internal/logger"
)

// MountState is one volume attached by zortoshub.
type MountState struct {
	AppID     string    `json:"app_id"`     // Catalog identifier of the application
	ImagePath string    `json:"image_path"` // Absolute path of the attached .dmg
	MountPath string    `json:"mount_path"` // Where the volume is mounted, e.g. /Volumes/Firefox
	MountedAt time.Time `json:"mounted_at"`
}

// State holds every tracked mount keyed by mount path.
type State struct {
	Mounts map[string]MountState `json:"mounts"`
}

// LoadState reads the state file at path.
// A missing or unreadable file yields an empty State.
func LoadState(path string) *State {
	file, err := os.ReadFile(path)
	if err != nil {
		return &State{Mounts: make(map[string]MountState)}
	}

	var st State
	if err := json.Unmarshal(file, &st); err != nil {
		logger.Warn("[WARN] Ignoring corrupt state file %s: %v\n", path, err)
	}
	if st.Mounts == nil {
		st.Mounts = make(map[string]MountState)
	}
	return &st
}

// SaveState writes st to path as indented JSON, creating the parent directory.
func SaveState(path string, st *State) error {
	file, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	logger.Debug("[DEBUG] Writing state to %s:\n%s\n", path, string(file))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, file, 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	return nil
}

// Add records m, replacing any entry for the same mount path.
func (s *State) Add(m MountState) {
	s.Mounts[m.MountPath] = m
}

// Remove forgets the mount at mountPath. It reports whether an entry existed.
func (s *State) Remove(mountPath string) bool {
	_, ok := s.Mounts[mountPath]
	delete(s.Mounts, mountPath)
	return ok
}

// List returns the tracked mounts, oldest first.
func (s *State) List() []MountState {
	out := make([]MountState, 0, len(s.Mounts))
	for _, m := range s.Mounts {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MountedAt.Equal(out[j].MountedAt) {
			return out[i].MountedAt.Before(out[j].MountedAt)
		}
		return out[i].MountPath < out[j].MountPath
	})
	return out
}

// Track adds m to the state file at path.
func Track(path string, m MountState) error {
	st := LoadState(path)
	st.Add(m)
	return SaveState(path, st)
}

// Untrack removes mountPath from the state file at path.
func Untrack(path, mountPath string) error {
	st := LoadState(path)
	if !st.Remove(mountPath) {
		return nil
	}
	return SaveState(path, st)
}
