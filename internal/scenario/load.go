package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var ErrNotFound = errors.New("scenario not found")

// Load decodes and compiles one scenario document.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Compile(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile loads a scenario from a YAML file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	sc, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Catalog is a read-only set of compiled scenarios keyed by name.
type Catalog struct {
	scenarios map[string]*Scenario
}

// NewCatalog loads the built-in scenarios and then every *.yaml / *.yml
// file of dir, which may override built-ins by name. dir may be empty.
func NewCatalog(dir string) (*Catalog, error) {
	c := &Catalog{scenarios: make(map[string]*Scenario)}
	if err := c.addFS(builtinFS, "builtin"); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := c.addFS(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("scenario dir %s: %w", dir, err)
		}
	}
	return c, nil
}

func (c *Catalog) addFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return err
		}
		sc, err := Load(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		c.scenarios[sc.Name] = sc
	}
	return nil
}

// Get returns the named scenario.
func (c *Catalog) Get(name string) (*Scenario, error) {
	sc, ok := c.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return sc, nil
}

// All returns every scenario sorted by name.
func (c *Catalog) All() []*Scenario {
	out := make([]*Scenario, 0, len(c.scenarios))
	for _, sc := range c.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
