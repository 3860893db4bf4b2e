package cli

import (
	"os"
	"path/filepath"
)

// Paths locates an app's files under ~/.giztoy/<app>.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns the Paths of appName under the user's home directory.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// AppDir returns ~/.giztoy/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile returns ~/.giztoy/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns ~/.giztoy/<app>/data/<context>, the default home of a
// context's session store and local archive.
func (p *Paths) DataDir(context string) string {
	return filepath.Join(p.AppDir(), "data", context)
}

// StorePath returns the default store location for backend in context:
// a directory for badger, a database file for sqlite, and "" for memory.
func (p *Paths) StorePath(context, backend string) string {
	switch backend {
	case "badger":
		return filepath.Join(p.DataDir(context), "sessions.badger")
	case "sqlite":
		return filepath.Join(p.DataDir(context), "sessions.db")
	default:
		return ""
	}
}

// ArchiveDir returns the default local archive directory of context.
func (p *Paths) ArchiveDir(context string) string {
	return filepath.Join(p.DataDir(context), "archive")
}

// EnsureDataDir creates the data directory of context if it doesn't exist.
func (p *Paths) EnsureDataDir(context string) error {
	return os.MkdirAll(p.DataDir(context), 0755)
}
