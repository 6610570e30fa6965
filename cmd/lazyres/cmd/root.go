package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onflow/lazyres/config"
	"github.com/onflow/lazyres/engine/session/cache"
	"github.com/onflow/lazyres/module/metrics"
	"github.com/onflow/lazyres/module/treeprovider"
)

var (
	flagConfigFile string

	cfg     config.Config
	log     zerolog.Logger
	errInit error
)

var rootCmd = &cobra.Command{
	Use:          "lazyres",
	Short:        "Resolve the declarations of a project phase by phase",
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return errInit
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a YAML config file")
	config.InitializeFlags(rootCmd.PersistentFlags(), config.DefaultConfig())

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	errInit = loadConfig()
}

func loadConfig() error {
	v := config.NewViper(config.DefaultConfig())
	if flagConfigFile != "" {
		v.SetConfigFile(flagConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("could not bind flags: %w", err)
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(cfg.Level()).With().Timestamp().Logger()
	return nil
}

// commandContext bounds the context of cmd by the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.ResolveTimeout > 0 {
		return context.WithTimeout(ctx, cfg.ResolveTimeout)
	}
	return context.WithCancel(ctx)
}

func newCache(trees treeprovider.Provider) (*cache.Cache, error) {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	return cache.New(log, collector, trees, cache.DefaultFactories(), cfg.CacheOptions()...)
}
