// Package config loads the application configuration from, in order
// of precedence, environment variables (ASSETSYNC_ prefix), an
// optional YAML config file, and defaults. The resulting Config is a
// plain value handed to components; nothing reads viper after load.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stenbroen/assetsync/pkg/errors"
)

// Defaults applied when neither environment nor config file say
// otherwise.
const (
	DefaultSNMPCommunity = "public"
	DefaultConcurrency   = 8
	DefaultCacheTTL      = 5 * time.Minute
	DefaultHistoryPath   = "assetsync-history.db"
	DefaultOverridesPath = "overrides.yaml"
)

// Config holds everything the application needs to run.
type Config struct {
	// Inventory store (the canonical record keeper).
	InventoryURL   string
	InventoryToken string
	CacheTTL       time.Duration

	// MDM source.
	MDMURL   string
	MDMToken string

	// SNMP source.
	SNMPRanges    []string
	SNMPCommunity string

	// Port scan source.
	ScanTargets []string
	ScanPorts   string

	// Static override table and run history.
	OverridesPath string
	HistoryPath   string

	// Engine behavior.
	Concurrency int
	DryRun      bool

	// Logging.
	LogLevel  string
	LogFormat string
	LogOutput string

	// ConfigFile is the file actually read, empty if none.
	ConfigFile string
}

// LoadEnvFiles loads .env files into the process environment.
// .env.local overrides .env. Missing files are not errors.
func LoadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Load builds the configuration. An explicit configFile must exist
// and parse; with an empty path the standard locations (working
// directory, then home) are searched and a missing file is fine.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("ASSETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapIO("read", configFile, err)
		}
	} else {
		v.SetConfigName(".assetsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		InventoryURL:   v.GetString("inventory.url"),
		InventoryToken: v.GetString("inventory.token"),
		CacheTTL:       v.GetDuration("inventory.cache_ttl"),

		MDMURL:   v.GetString("mdm.url"),
		MDMToken: v.GetString("mdm.token"),

		SNMPRanges:    v.GetStringSlice("snmp.ranges"),
		SNMPCommunity: v.GetString("snmp.community"),

		ScanTargets: v.GetStringSlice("scan.targets"),
		ScanPorts:   v.GetString("scan.ports"),

		OverridesPath: v.GetString("overrides.path"),
		HistoryPath:   v.GetString("history.path"),

		Concurrency: v.GetInt("concurrency"),
		DryRun:      v.GetBool("dry_run"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		LogOutput: v.GetString("log.output"),

		ConfigFile: v.ConfigFileUsed(),
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inventory.cache_ttl", DefaultCacheTTL)
	v.SetDefault("snmp.community", DefaultSNMPCommunity)
	v.SetDefault("overrides.path", DefaultOverridesPath)
	v.SetDefault("history.path", DefaultHistoryPath)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

// ValidateForSync checks that the settings a sync run depends on are
// present. Scan sources are optional; the inventory store is not.
func (c *Config) ValidateForSync() error {
	if c.InventoryURL == "" {
		return errors.NewConfigError("inventory", "inventory URL is required", nil)
	}
	if c.InventoryToken == "" {
		return errors.NewConfigError("inventory", "API token is required", errors.ErrTokenRequired)
	}
	return nil
}

// HasMDM reports whether the MDM source is configured.
func (c *Config) HasMDM() bool {
	return c.MDMURL != "" && c.MDMToken != ""
}

// HasSNMP reports whether the SNMP source is configured.
func (c *Config) HasSNMP() bool {
	return len(c.SNMPRanges) > 0
}

// HasScan reports whether the port scan source is configured.
func (c *Config) HasScan() bool {
	return len(c.ScanTargets) > 0
}
