// Package yamltree reads a workspace of modules and their declarations from YAML.
//
//	modules:
//	  - id: lib
//	    kind: library
//	    platforms: [jvm]
//	    files:
//	      - name: Lib.kt
//	        declarations:
//	          - {kind: function, name: answer, body: "42"}
//	  - id: app
//	    kind: source
//	    dependencies: [lib]
//	    files: [...]
//	    scripts: [...]
package yamltree

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module/treeprovider"
)

type workspaceFile struct {
	Modules []moduleEntry `yaml:"modules"`
}

type moduleEntry struct {
	ID           string                `yaml:"id"`
	Kind         string                `yaml:"kind"`
	Platforms    []string              `yaml:"platforms"`
	Dependencies []string              `yaml:"dependencies"`
	Files        []treeprovider.File   `yaml:"files"`
	Scripts      []treeprovider.Script `yaml:"scripts"`
}

// Workspace holds the modules of a YAML workspace. It is a tree provider for them.
type Workspace struct {
	modules []*project.Module
	byID    map[string]*project.Module
	sources map[string]moduleEntry
}

var _ treeprovider.Provider = (*Workspace)(nil)

// LoadFile reads the workspace at path.
func LoadFile(path string) (*Workspace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open workspace: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a workspace. Dependencies may refer to modules declared later
// but must not form a cycle.
func Load(r io.Reader) (*Workspace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read workspace: %w", err)
	}
	var wf workspaceFile
	if err := yaml.UnmarshalStrict(data, &wf); err != nil {
		return nil, fmt.Errorf("could not decode workspace: %w", err)
	}

	w := &Workspace{
		byID:    make(map[string]*project.Module),
		sources: make(map[string]moduleEntry),
	}
	for _, entry := range wf.Modules {
		if entry.ID == "" {
			return nil, fmt.Errorf("module without id")
		}
		if _, ok := w.byID[entry.ID]; ok {
			return nil, fmt.Errorf("duplicate module %s", entry.ID)
		}
		kind, err := project.ParseKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", entry.ID, err)
		}
		platforms := make([]project.Platform, 0, len(entry.Platforms))
		for _, name := range entry.Platforms {
			p, err := project.ParsePlatform(name)
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", entry.ID, err)
			}
			platforms = append(platforms, p)
		}
		m := project.NewModule(entry.ID, kind, platforms)
		w.modules = append(w.modules, m)
		w.byID[entry.ID] = m
		w.sources[entry.ID] = entry
	}

	for _, entry := range wf.Modules {
		m := w.byID[entry.ID]
		for _, dep := range entry.Dependencies {
			d, ok := w.byID[dep]
			if !ok {
				return nil, fmt.Errorf("module %s depends on undeclared module %s", entry.ID, dep)
			}
			m.Dependencies = append(m.Dependencies, d)
		}
	}
	if err := checkAcyclic(w.modules); err != nil {
		return nil, err
	}
	return w, nil
}

func checkAcyclic(modules []*project.Module) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*project.Module]int)
	var visit func(m *project.Module, path []string) error
	visit = func(m *project.Module, path []string) error {
		switch state[m] {
		case visiting:
			return fmt.Errorf("dependency cycle %v", append(path, m.ID))
		case done:
			return nil
		}
		state[m] = visiting
		for _, dep := range m.Dependencies {
			if err := visit(dep, append(path, m.ID)); err != nil {
				return err
			}
		}
		state[m] = done
		return nil
	}
	for _, m := range modules {
		if err := visit(m, nil); err != nil {
			return err
		}
	}
	return nil
}

// Modules returns the modules in declared order.
func (w *Workspace) Modules() []*project.Module {
	return w.modules
}

func (w *Workspace) Module(id string) (*project.Module, bool) {
	m, ok := w.byID[id]
	return m, ok
}

// Tree builds a fresh declaration tree of m.
// Expected errors:
//   - treeprovider.ErrUnknownModule if m is not part of the workspace
func (w *Workspace) Tree(ctx context.Context, m *project.Module) (*decl.Arena, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := w.sources[m.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.ID, treeprovider.ErrUnknownModule)
	}
	arena, err := treeprovider.Build(m.ID, entry.Files, entry.Scripts)
	if err != nil {
		return nil, fmt.Errorf("could not build tree of %s: %w", m, err)
	}
	return arena, nil
}
