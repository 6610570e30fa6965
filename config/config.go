// Package config holds the settings of the resolution tools. Values are
// read through viper from defaults, an optional config file, LAZYRES_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/lazyres/engine/session"
	"github.com/onflow/lazyres/engine/session/cache"
	"github.com/onflow/lazyres/engine/warmup"
	"github.com/onflow/lazyres/model/phase"
)

const (
	// EnvPrefix prefixes the environment variable of every key, with dots and dashes as underscores.
	EnvPrefix = "LAZYRES"

	logLevel          = "log-level"
	workers           = "workers"
	targetPhase       = "phase"
	resolveTimeout    = "resolve-timeout"
	sourceCapacity    = "cache.source-capacity"
	binaryCapacity    = "cache.binary-capacity"
	preferBinary      = "cache.prefer-binary"
	symbolCacheSize   = "cache.symbol-cache-size"
	returnTypeCacheSz = "cache.return-type-cache-size"
)

type Config struct {
	LogLevel string `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	// Workers is the number of declarations resolved concurrently by bulk commands.
	Workers int `mapstructure:"workers" validate:"gte=1,lte=1024"`
	// Phase is the phase commands resolve to.
	Phase phase.Phase `mapstructure:"phase" validate:"phase"`
	// ResolveTimeout bounds a whole command, zero means no bound.
	ResolveTimeout time.Duration `mapstructure:"resolve-timeout" validate:"gte=0"`
	Cache          CacheConfig   `mapstructure:"cache"`
}

type CacheConfig struct {
	SourceCapacity      int  `mapstructure:"source-capacity" validate:"gte=1"`
	BinaryCapacity      int  `mapstructure:"binary-capacity" validate:"gte=1"`
	PreferBinary        bool `mapstructure:"prefer-binary"`
	SymbolCacheSize     int  `mapstructure:"symbol-cache-size" validate:"gte=1"`
	ReturnTypeCacheSize int  `mapstructure:"return-type-cache-size" validate:"gte=1"`
}

func DefaultConfig() Config {
	sessions := session.DefaultConfig()
	return Config{
		LogLevel:       zerolog.InfoLevel.String(),
		Workers:        warmup.DefaultWorkers,
		Phase:          phase.Max,
		ResolveTimeout: time.Minute,
		Cache: CacheConfig{
			SourceCapacity:      cache.DefaultCapacity(),
			BinaryCapacity:      cache.DefaultCapacity(),
			PreferBinary:        true,
			SymbolCacheSize:     sessions.SymbolCacheSize,
			ReturnTypeCacheSize: sessions.ReturnTypeCacheSize,
		},
	}
}

// InitializeFlags defines a flag per key on flags, with the values of c as defaults.
func InitializeFlags(flags *pflag.FlagSet, c Config) {
	flags.String(logLevel, c.LogLevel, "log level: trace, debug, info, warn or error")
	flags.Int(workers, c.Workers, "number of declarations resolved concurrently")
	flags.String(targetPhase, c.Phase.String(), fmt.Sprintf("phase to resolve to, one of %s", strings.Join(phaseNames(), ", ")))
	flags.Duration(resolveTimeout, c.ResolveTimeout, "maximum duration of the command, 0 for none")
	flags.Int(sourceCapacity, c.Cache.SourceCapacity, "maximum number of cached source sessions")
	flags.Int(binaryCapacity, c.Cache.BinaryCapacity, "maximum number of cached binary sessions")
	flags.Bool(preferBinary, c.Cache.PreferBinary, "serve compiled modules from their binary sessions")
	flags.Int(symbolCacheSize, c.Cache.SymbolCacheSize, "number of symbol lookups memoized per session")
	flags.Int(returnTypeCacheSz, c.Cache.ReturnTypeCacheSize, "number of return types memoized per session")
}

// NewViper returns a viper instance with the defaults of c and the environment bound.
func NewViper(c Config) *viper.Viper {
	v := viper.New()
	v.SetDefault(logLevel, c.LogLevel)
	v.SetDefault(workers, c.Workers)
	v.SetDefault(targetPhase, c.Phase.String())
	v.SetDefault(resolveTimeout, c.ResolveTimeout)
	v.SetDefault(sourceCapacity, c.Cache.SourceCapacity)
	v.SetDefault(binaryCapacity, c.Cache.BinaryCapacity)
	v.SetDefault(preferBinary, c.Cache.PreferBinary)
	v.SetDefault(symbolCacheSize, c.Cache.SymbolCacheSize)
	v.SetDefault(returnTypeCacheSz, c.Cache.ReturnTypeCacheSize)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := newValidator().Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Level returns the zerolog level of LogLevel.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// SessionConfig returns the per session settings.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		SymbolCacheSize:     c.Cache.SymbolCacheSize,
		ReturnTypeCacheSize: c.Cache.ReturnTypeCacheSize,
	}
}

// CacheOptions returns the options of a session cache built from c.
func (c Config) CacheOptions() []cache.Option {
	return []cache.Option{
		cache.WithSourceCapacity(c.Cache.SourceCapacity),
		cache.WithBinaryCapacity(c.Cache.BinaryCapacity),
		cache.WithSessionConfig(c.SessionConfig()),
	}
}

func newValidator() *validator.Validate {
	validate := validator.New()
	// registration only fails for an empty tag or a nil function
	_ = validate.RegisterValidation("phase", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Uint8 {
			return false
		}
		return phase.Phase(fl.Field().Uint()).IsValid()
	})
	return validate
}

func phaseNames() []string {
	var names []string
	for _, p := range phase.All() {
		names = append(names, p.String())
	}
	return names
}
