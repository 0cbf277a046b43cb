package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/hireflow/errors"
)

// EnvPrefix prefixes every environment override, e.g. HIREFLOW_PULSE_BATCH_SIZE
const EnvPrefix = "HIREFLOW"

// ConfigFileName is the file looked up in every config location
const ConfigFileName = "am.toml"

var (
	loadMu        sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records which file set each key during the last load
	ConfigSources = map[string]SourceInfo{}
	// LoadedFiles lists the config files merged during the last load, lowest precedence first
	LoadedFiles []string
)

// Load reads the configuration once and caches it
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := LoadWithViper(initViperLocked())
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViperLocked()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads defaults plus a single file, ignoring other locations and the environment
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", configPath)
	}
	return cfg, nil
}

// Reset clears the cached configuration so the next Load re-reads every source
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

func initViperLocked() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)
	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// configLocations returns candidate files in precedence order, lowest first
func configLocations() []SourceInfo {
	locations := []SourceInfo{{Source: SourceSystem, Path: filepath.Join("/etc/hireflow", ConfigFileName)}}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, SourceInfo{Source: SourceUser, Path: filepath.Join(home, ".hireflow", ConfigFileName)})
	}
	if project := findProjectConfig(); project != "" {
		locations = append(locations, SourceInfo{Source: SourceProject, Path: project})
	}
	return locations
}

// findProjectConfig walks up from the working directory looking for am.toml
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges existing config files into v, later files overriding earlier ones
func mergeConfigFiles(v *viper.Viper) {
	ConfigSources = map[string]SourceInfo{}
	LoadedFiles = nil

	for _, loc := range configLocations() {
		if _, err := os.Stat(loc.Path); err != nil {
			continue
		}
		file := viper.New()
		file.SetConfigFile(loc.Path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			continue
		}
		// MergeConfigMap keeps file values below environment overrides
		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			continue
		}
		for _, key := range file.AllKeys() {
			ConfigSources[key] = loc
		}
		LoadedFiles = append(LoadedFiles, loc.Path)
	}
}

// ActiveConfigFile returns the highest-precedence file merged in the last load, or ""
func ActiveConfigFile() string {
	GetViper()
	loadMu.Lock()
	defer loadMu.Unlock()
	if len(LoadedFiles) == 0 {
		return ""
	}
	return LoadedFiles[len(LoadedFiles)-1]
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}
