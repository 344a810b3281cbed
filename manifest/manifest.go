// Package manifest handles symtab.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/symtab/vm"
)

var log = commonlog.GetLogger("symtab.manifest")

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "symtab.toml"

// Manifest represents a symtab.toml configuration.
type Manifest struct {
	Symbols Symbols `toml:"symbols"`
	Gensym  Gensym  `toml:"gensym"`
	Journal Journal `toml:"journal"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the symtab.toml file (set at load time).
	Dir string `toml:"-"`
}

// Symbols configures the symbol table.
type Symbols struct {
	MaxNameLength int `toml:"max-name-length"`
	ArenaBlock    int `toml:"arena-block"`
}

// Gensym configures fresh-name generation.
type Gensym struct {
	Counter uint32 `toml:"counter"`
}

// Journal configures the snapshot journal.
type Journal struct {
	Path string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no symtab.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.fillDefaults()
	return m
}

func (m *Manifest) fillDefaults() {
	if m.Symbols.ArenaBlock == 0 {
		m.Symbols.ArenaBlock = vm.DefaultArenaBlock
	}
	if m.Journal.Path == "" {
		m.Journal.Path = filepath.Join(".symtab", "journal.db")
	}
}

// Load parses a symtab.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(dir, path, data)
}

func parse(dir, path string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	var err error
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.fillDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	log.Debugf("loaded %s", path)
	return &m, nil
}

// FindAndLoad walks up from startDir to find a symtab.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// JournalPath returns the absolute journal path.
func (m *Manifest) JournalPath() string {
	if filepath.IsAbs(m.Journal.Path) {
		return m.Journal.Path
	}
	return filepath.Join(m.Dir, m.Journal.Path)
}

// Options returns symbol table options for this configuration.
func (m *Manifest) Options() vm.Options {
	return vm.Options{
		MaxNameLen: m.Symbols.MaxNameLength,
		ArenaBlock: m.Symbols.ArenaBlock,
		Counter:    m.Gensym.Counter,
	}
}
