package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"

	"github.com/onflow/lazyres/engine/session"
	"github.com/onflow/lazyres/engine/session/cache"
	"github.com/onflow/lazyres/engine/warmup"
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/model/project"
)

// resolveModules warms the sessions of modules to the configured phase and
// prints their declarations. Declarations that failed are printed too.
func resolveModules(ctx context.Context, w io.Writer, c *cache.Cache, modules []*project.Module) error {
	var sessions []*session.Session
	for _, m := range modules {
		s, err := c.GetSession(ctx, m, cfg.Cache.PreferBinary)
		if err != nil {
			return fmt.Errorf("could not create session of %s: %w", m.ID, err)
		}
		sessions = append(sessions, s)
	}

	var result *multierror.Error
	if err := warmup.NewWarmer(log, cfg.Workers).WarmAll(ctx, sessions, cfg.Phase); err != nil {
		result = multierror.Append(result, err)
	}
	for _, s := range sessions {
		if err := printSession(w, s); err != nil {
			return err
		}
	}
	return result.ErrorOrNil()
}

func printSession(w io.Writer, s *session.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "module %s (%s)\n", s.Module().ID, s.Module().Kind)
	s.Arena().Walk(func(n *decl.Node) bool {
		typ := "-"
		if n.Kind().IsCallable() {
			typ = n.Payload().ReturnType.String()
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", strings.Repeat("  ", depth(n)+1), n.QualifiedName(), n.Kind(), n.Phase(), typ)
		return true
	})
	return tw.Flush()
}

func depth(n *decl.Node) int {
	d := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}
