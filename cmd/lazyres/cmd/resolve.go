package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module/treeprovider/yamltree"
)

var (
	flagWorkspace string
	flagModules   []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the modules of a YAML workspace",
	Long: `Resolve the modules of a YAML workspace to the configured phase and print
their declarations. Without --module every source and script module is resolved.`,
	RunE: resolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&flagWorkspace, "workspace", "w", "", "path to the workspace YAML file")
	_ = resolveCmd.MarkFlagRequired("workspace")
	resolveCmd.Flags().StringSliceVarP(&flagModules, "module", "m", nil, "ids of the modules to resolve")
}

func resolve(cmd *cobra.Command, _ []string) error {
	ws, err := yamltree.LoadFile(flagWorkspace)
	if err != nil {
		return err
	}

	var modules []*project.Module
	if len(flagModules) == 0 {
		for _, m := range ws.Modules() {
			if m.Kind == project.KindSource || m.Kind == project.KindScript {
				modules = append(modules, m)
			}
		}
	}
	for _, id := range flagModules {
		m, ok := ws.Module(id)
		if !ok {
			return fmt.Errorf("no module %s in %s", id, flagWorkspace)
		}
		modules = append(modules, m)
	}

	c, err := newCache(ws)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	return resolveModules(ctx, cmd.OutOrStdout(), c, modules)
}
