package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-lineprobe/server"
)

// Registry holds the fixtures and server settings loaded from a manifest
type Registry struct {
	config   Config
	manifest *Manifest
	fixtures []string
	mu       sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log          log.Logger
	ManifestFile string
}

// Manifest is the on-disk YAML layout:
//
//	server:
//	  command: python3
//	  args: [mica]
//	  port: 1234
//	  storage: ":memory:"
//	  print_io: true
//	  kill_grace: 2s
//	fixtures:
//	  - tests/basic
//	  - tests/errors
type Manifest struct {
	Server   ServerConfig `yaml:"server"`
	Fixtures []string     `yaml:"fixtures"`
}

// ServerConfig describes how to launch the server under test. Zero values
// mean "not set" and leave the corresponding default untouched.
type ServerConfig struct {
	Command   string        `yaml:"command"`
	Args      []string      `yaml:"args"`
	Port      int           `yaml:"port"`
	Storage   string        `yaml:"storage"`
	PrintIO   *bool         `yaml:"print_io"`
	KillGrace time.Duration `yaml:"kill_grace"`
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ManifestFile == "" {
		return nil, fmt.Errorf("manifest file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadManifest(cfg.ManifestFile); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "manifest", cfg.ManifestFile, "len(fixtures)", len(r.fixtures))

	return r, nil
}

func (r *Registry) loadManifest(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	manifest, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := manifest.validate(); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	// Relative fixture paths are relative to the manifest, not the working directory
	base := filepath.Dir(path)
	fixtures := make([]string, 0, len(manifest.Fixtures))
	for _, f := range manifest.Fixtures {
		if !filepath.IsAbs(f) {
			f = filepath.Join(base, f)
		}
		fixtures = append(fixtures, f)
	}

	r.manifest = manifest
	r.fixtures = fixtures
	return nil
}

func (m *Manifest) validate() error {
	if m.Server.Port < 0 || m.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", m.Server.Port)
	}
	if m.Server.KillGrace < 0 {
		return fmt.Errorf("kill_grace cannot be negative: %s", m.Server.KillGrace)
	}
	for i, f := range m.Fixtures {
		if f == "" {
			return fmt.Errorf("fixture %d has an empty path", i)
		}
	}
	return nil
}

// Fixtures returns the manifest's fixture paths in manifest order, resolved
// against the manifest's directory. Duplicates are kept.
func (r *Registry) Fixtures() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fixtures...)
}

// Server returns the manifest's server block.
func (r *Registry) Server() ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest.Server
}

// Apply copies every value set in the server block onto spec.
func (c ServerConfig) Apply(spec *server.Spec) {
	if c.Command != "" {
		spec.Command = c.Command
	}
	if c.Args != nil {
		spec.Args = append([]string(nil), c.Args...)
	}
	if c.Port != 0 {
		spec.Port = c.Port
	}
	if c.Storage != "" {
		spec.Storage = c.Storage
	}
	if c.PrintIO != nil {
		spec.PrintIO = *c.PrintIO
	}
	if c.KillGrace != 0 {
		spec.KillGrace = c.KillGrace
	}
}

// loadConfig reads and strictly decodes a manifest file
func loadConfig(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest file: %w", err)
	}
	return &m, nil
}
