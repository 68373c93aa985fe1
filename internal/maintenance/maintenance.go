// Package maintenance provides the operational maintenance switch consulted
// before event processing.
package maintenance

import (
	"fmt"
	"os"
	"sync/atomic"
)

// State reports whether the system is in maintenance mode. The dispatcher
// only reads it; toggling belongs to the admin surface.
type State interface {
	Closed() bool
}

// FileGate persists the maintenance flag as a file on disk, so the switch
// survives restarts.
type FileGate struct {
	path string
}

// NewFileGate creates a gate backed by the given flag file path.
func NewFileGate(path string) *FileGate {
	return &FileGate{path: path}
}

// Closed reports whether maintenance mode is enabled.
func (g *FileGate) Closed() bool {
	_, err := os.Stat(g.path)
	return err == nil
}

// Enable turns maintenance mode on.
func (g *FileGate) Enable() error {
	if err := os.WriteFile(g.path, []byte("1"), 0644); err != nil {
		return fmt.Errorf("failed to write maintenance flag: %w", err)
	}
	return nil
}

// Disable turns maintenance mode off. Disabling an already-open gate is a
// no-op.
func (g *FileGate) Disable() error {
	err := os.Remove(g.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove maintenance flag: %w", err)
	}
	return nil
}

// MemoryGate is an in-memory State for tests.
type MemoryGate struct {
	closed atomic.Bool
}

// Closed reports whether maintenance mode is enabled.
func (g *MemoryGate) Closed() bool {
	return g.closed.Load()
}

// SetClosed sets the maintenance state.
func (g *MemoryGate) SetClosed(v bool) {
	g.closed.Store(v)
}
