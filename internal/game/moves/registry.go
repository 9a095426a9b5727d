package moves

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownMove is returned when a move id is not in the catalog.
var ErrUnknownMove = errors.New("unknown move")

// Catalog resolves move ids to compiled moves.
type Catalog interface {
	Lookup(id string) (*Move, bool)
}

// Registry holds compiled moves keyed by id. It is not safe for concurrent
// mutation; populate it before sharing.
type Registry struct {
	moves map[string]*Move
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{moves: make(map[string]*Move)}
}

// Register adds m, replacing any move with the same id.
//
// Precondition: m must be non-nil with a non-empty ID.
func (r *Registry) Register(m *Move) {
	r.moves[m.ID] = m
}

// Lookup returns the move for id.
func (r *Registry) Lookup(id string) (*Move, bool) {
	m, ok := r.moves[id]
	return m, ok
}

// Fetch returns the move for id or ErrUnknownMove.
func (r *Registry) Fetch(id string) (*Move, error) {
	if m, ok := r.moves[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMove, id)
}

// All returns every registered move sorted by id.
func (r *Registry) All() []*Move {
	out := make([]*Move, 0, len(r.moves))
	for _, m := range r.moves {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered moves.
func (r *Registry) Len() int { return len(r.moves) }

// LoadDirectory reads every *.yaml file in dir, compiles each as a MoveDef and
// returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to
// parse or compile, or if two files declare the same id.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading move dir %q: %w", dir, err)
	}

	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		m, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if _, dup := reg.moves[m.ID]; dup {
			return nil, fmt.Errorf("parsing %q: duplicate move id %q", path, m.ID)
		}
		reg.Register(m)
	}
	return reg, nil
}

// Parse decodes a single YAML move definition and compiles it.
func Parse(data []byte) (*Move, error) {
	var def MoveDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}
	return Compile(&def)
}
