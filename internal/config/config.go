package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// DefaultPath is where the configuration file is looked up unless --config is given.
const DefaultPath = "./config/config.yml"

// Config holds the main configuration for the application.
type Config struct {
	Workdir     string      `mapstructure:"workdir"` // root of the image directories
	Sources     []string    `mapstructure:"sources"` // image URLs to download, in order
	Storage     Storage     `mapstructure:"storage"`
	Fetcher     Fetcher     `mapstructure:"fetcher"`
	Transformer Transformer `mapstructure:"transformer"`
	Pipeline    Pipeline    `mapstructure:"pipeline"`
}

// Storage holds the directory layout, relative to the workdir.
type Storage struct {
	ImagesDir    string `mapstructure:"images_dir"`    // downloaded images
	ProcessedDir string `mapstructure:"processed_dir"` // thumbnails
}

// Fetcher holds configuration for the download stage.
type Fetcher struct {
	Workers             int           `mapstructure:"workers"`                 // 0 selects the default
	Timeout             time.Duration `mapstructure:"timeout"`                 // per request, body included
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"` // HTTP keep-alive pool size
	ValidateStatus      bool          `mapstructure:"validate_status"`         // reject non-2xx responses
	VerifyContent       bool          `mapstructure:"verify_content"`          // reject non-image bodies
}

// Transformer holds configuration for the thumbnail stage.
type Transformer struct {
	Workers int `mapstructure:"workers"` // 0 selects NumCPU; capped at NumCPU
}

// Pipeline holds configuration for stage sequencing and failure policy.
type Pipeline struct {
	Handoff         string `mapstructure:"handoff"`           // "scan" or "list"
	ContinueOnError bool   `mapstructure:"continue_on_error"` // collect item failures instead of failing fast
}

// DefaultSources is the built-in list of images downloaded when none are configured.
var DefaultSources = []string{
	"https://images.unsplash.com/photo-1635088173181-673ff547a555",
	"https://images.unsplash.com/photo-1635481712720-a1b30952ed4b",
	"https://images.unsplash.com/photo-1635420280816-c0dc0ee8a7a7",
	"https://images.unsplash.com/photo-1632269826291-2cb3009bf43d",
	"https://images.unsplash.com/photo-1617137604160-fc923f3173d0",
	"https://images.unsplash.com/photo-1635398517284-2f3c7fef7fee",
	"https://images.unsplash.com/photo-1635417073744-0b09b9ac4dfc",
	"https://images.unsplash.com/photo-1604854657221-42873468254c",
	"https://images.unsplash.com/photo-1615762325085-8babbbce2c43",
	"https://images.unsplash.com/photo-1635317224525-19c1d33f9036",
	"https://images.unsplash.com/photo-1635333702118-b53d15341ed4",
	"https://images.unsplash.com/photo-1635269941799-665d1618d5d8",
	"https://images.unsplash.com/photo-1635297383087-8842f98f908a",
	"https://images.unsplash.com/photo-1610898404424-1439b7006e1c",
	"https://images.unsplash.com/photo-1634692804775-67207ea81cc5",
	"https://images.unsplash.com/photo-1633410229020-938fdaefd884",
	"https://images.unsplash.com/photo-1632085847101-028ec1b2abeb",
	"https://images.unsplash.com/photo-1627142625827-1d7e65635b18",
	"https://images.unsplash.com/photo-1629129207344-6a452eea1ea5",
	"https://images.unsplash.com/photo-1628258867160-f11ee22397c5",
	"https://images.unsplash.com/photo-1635342242063-a64d654fbfbe",
}

var ErrInvalidConfig = errors.New("invalid config")

// envPrefix prefixes environment overrides, e.g. THUMBNAILER_FETCHER_WORKERS.
const envPrefix = "THUMBNAILER"

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"workdir":           "workdir",
	"fetch-workers":     "fetcher.workers",
	"transform-workers": "transformer.workers",
	"handoff":           "pipeline.handoff",
	"continue-on-error": "pipeline.continue_on_error",
}

// RegisterFlags defines the command-line flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultPath, "path to the YAML config file")
	fs.String("workdir", ".", "directory the images/ tree is created in")
	fs.StringArray("source", nil, "image URL to download (repeatable, replaces configured sources)")
	fs.Int("fetch-workers", 0, "concurrent downloads (0 = NumCPU+4, max 32)")
	fs.Int("transform-workers", 0, "concurrent thumbnail workers (0 = NumCPU)")
	fs.String("handoff", "scan", `how stage 2 finds images: "scan" or "list"`)
	fs.Bool("continue-on-error", false, "process remaining items when some fail")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workdir", ".")
	v.SetDefault("sources", DefaultSources)
	v.SetDefault("storage.images_dir", "images")
	v.SetDefault("storage.processed_dir", "images/processed")
	v.SetDefault("fetcher.workers", 0)
	v.SetDefault("fetcher.timeout", 60*time.Second)
	v.SetDefault("fetcher.max_idle_conns_per_host", 32)
	v.SetDefault("fetcher.validate_status", true)
	v.SetDefault("fetcher.verify_content", false)
	v.SetDefault("transformer.workers", 0)
	v.SetDefault("pipeline.handoff", "scan")
	v.SetDefault("pipeline.continue_on_error", false)
}

// Load reads configuration from the YAML file at path, then applies
// environment overrides and any flags set on fs. An empty path skips the file.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}

		if fs.Changed("source") {
			sources, err := fs.GetStringArray("source")
			if err != nil {
				return nil, fmt.Errorf("failed to read sources flag: %w", err)
			}
			v.Set("sources", sources)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that the stages rely on.
func (c *Config) Validate() error {
	switch {
	case c.Fetcher.Workers < 0:
		return fmt.Errorf("%w: fetcher.workers must be >= 0", ErrInvalidConfig)
	case c.Transformer.Workers < 0:
		return fmt.Errorf("%w: transformer.workers must be >= 0", ErrInvalidConfig)
	case c.Fetcher.Timeout < 0:
		return fmt.Errorf("%w: fetcher.timeout must be >= 0", ErrInvalidConfig)
	case c.Storage.ImagesDir == "" || c.Storage.ProcessedDir == "":
		return fmt.Errorf("%w: storage directories must not be empty", ErrInvalidConfig)
	case c.Storage.ImagesDir == c.Storage.ProcessedDir:
		return fmt.Errorf("%w: images_dir and processed_dir must differ", ErrInvalidConfig)
	}

	return nil
}

// MustLoad loads the configuration like Load.
// It panics if the configuration file cannot be loaded or is invalid.
func MustLoad(path string, fs *pflag.FlagSet) *Config {
	cfg, err := Load(path, fs)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
