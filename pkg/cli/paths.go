package cli

import (
	"os"
	"path/filepath"
)

// DefaultConfigFile is the configuration filename inside ConfigDir.
const DefaultConfigFile = "config.yaml"

// Paths locates the per-user files of an app.
type Paths struct {
	AppName string

	// ConfigHome is os.UserConfigDir(), DataHome the base for data files.
	ConfigHome string
	DataHome   string
}

// NewPaths resolves the per-user directories for appName. Data lives
// under $XDG_DATA_HOME when set, otherwise ~/.local/share.
func NewPaths(appName string) (*Paths, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		data = filepath.Join(home, ".local", "share")
	}
	return &Paths{AppName: appName, ConfigHome: cfg, DataHome: data}, nil
}

// ConfigDir returns <config home>/<app>.
func (p *Paths) ConfigDir() string {
	return filepath.Join(p.ConfigHome, p.AppName)
}

// ConfigFile returns <config home>/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir(), DefaultConfigFile)
}

// DataDir returns <data home>/<app>.
func (p *Paths) DataDir() string {
	return filepath.Join(p.DataHome, p.AppName)
}

// DataPath returns a path within the data directory
func (p *Paths) DataPath(name string) string {
	return filepath.Join(p.DataDir(), name)
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0755)
}
