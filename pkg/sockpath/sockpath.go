// Package sockpath provides the default Unix socket path for blucherd.
// blucherd and blucherctl use this to agree on the default.
package sockpath

import (
	"os"
	"path/filepath"
)

// DefaultSocketPath returns the default path for the blucherd Unix socket.
// It prefers $XDG_RUNTIME_DIR/blucher/blucherd.sock, falling back to
// ~/.config/blucher/blucherd.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "blucher", "blucherd.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "blucher", "blucherd.sock")
}
