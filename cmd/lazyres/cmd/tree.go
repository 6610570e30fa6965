package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/onflow/lazyres/model/project"
	"github.com/onflow/lazyres/module/treeprovider/gosource"
)

var treeCmd = &cobra.Command{
	Use:   "tree DIR...",
	Short: "Resolve Go packages",
	Long: `Parse the Go files of each directory into a module named after the directory,
resolve it to the configured phase and print its declarations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: tree,
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

func tree(cmd *cobra.Command, args []string) error {
	dirs := make(map[string]string, len(args))
	var modules []*project.Module
	for _, dir := range args {
		id := filepath.Base(filepath.Clean(dir))
		if _, ok := dirs[id]; ok {
			return fmt.Errorf("two directories named %s", id)
		}
		dirs[id] = dir
		modules = append(modules, project.NewModule(id, project.KindSource, nil))
	}

	c, err := newCache(gosource.NewProvider(log, dirs))
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	return resolveModules(ctx, cmd.OutOrStdout(), c, modules)
}
