package gosource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module/treeprovider"
)

// Provider reads each module from a directory of Go sources. Test files are skipped.
type Provider struct {
	log  zerolog.Logger
	dirs map[string]string
}

var _ treeprovider.Provider = (*Provider)(nil)

// NewProvider creates a provider reading module id from dirs[id].
func NewProvider(log zerolog.Logger, dirs map[string]string) *Provider {
	return &Provider{
		log:  log.With().Str("component", "go_source_provider").Logger(),
		dirs: dirs,
	}
}

// Tree parses the Go files of the module directory concurrently.
// Expected errors:
//   - treeprovider.ErrUnknownModule if no directory is configured for m
func (p *Provider) Tree(ctx context.Context, m *project.Module) (*decl.Arena, error) {
	dir, ok := p.dirs[m.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.ID, treeprovider.ErrUnknownModule)
	}
	paths, err := sourceFiles(dir)
	if err != nil {
		return nil, err
	}

	files := make([]treeprovider.File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("could not read %s: %w", path, err)
			}
			files[i], err = ParseFile(gctx, filepath.Base(path), source)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	arena, err := treeprovider.Build(m.ID, files, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build tree of %s: %w", m, err)
	}
	p.log.Debug().Str("module", m.ID).Int("files", len(files)).Int("nodes", arena.Len()).Msg("parsed module sources")
	return arena, nil
}

func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list sources: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
