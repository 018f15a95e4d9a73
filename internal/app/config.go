package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"zapretd/internal/domain"
	"zapretd/internal/infra/settings"
)

const envPrefix = "ZAPRETD"

// Config is the resolved runtime configuration. All paths are absolute.
type Config struct {
	Root         string
	ConfigFile   string
	WorkerName   string
	BinDir       string
	ProfilesDir  string
	ScratchDir   string
	SettingsPath string

	SettleDelay  time.Duration
	SpawnDelay   time.Duration
	RestartDelay time.Duration
	StopTimeout  time.Duration

	MetricsListenAddress string
	LogLevel             zapcore.Level
}

type rawConfig struct {
	Root               string           `mapstructure:"root"`
	WorkerName         string           `mapstructure:"workerName"`
	BinDir             string           `mapstructure:"binDir"`
	ProfilesDir        string           `mapstructure:"profilesDir"`
	ScratchDir         string           `mapstructure:"scratchDir"`
	SettingsPath       string           `mapstructure:"settingsPath"`
	SettleDelayMs      int              `mapstructure:"settleDelayMs"`
	SpawnDelayMs       int              `mapstructure:"spawnDelayMs"`
	RestartDelayMs     int              `mapstructure:"restartDelayMs"`
	StopTimeoutSeconds int              `mapstructure:"stopTimeoutSeconds"`
	Metrics            rawMetricsConfig `mapstructure:"metrics"`
	Log                rawLogConfig     `mapstructure:"log"`
}

type rawMetricsConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

type rawLogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadOptions selects the config file and the command-line flags layered on
// top of it. Flags are bound by name: root, log-level, metrics-listen.
type LoadOptions struct {
	ConfigPath string
	Flags      *pflag.FlagSet
}

var flagBindings = map[string]string{
	"root":                  "root",
	"log.level":             "log-level",
	"metrics.listenAddress": "metrics-listen",
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)
	return v
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("workerName", domain.DefaultWorkerName)
	v.SetDefault("binDir", domain.DefaultBinDirName)
	v.SetDefault("profilesDir", domain.DefaultProfilesDirName)
	v.SetDefault("scratchDir", domain.DefaultScratchDirName)
	v.SetDefault("settingsPath", domain.DefaultSettingsFileName)
	v.SetDefault("settleDelayMs", domain.DefaultSettleDelayMs)
	v.SetDefault("spawnDelayMs", domain.DefaultSpawnDelayMs)
	v.SetDefault("restartDelayMs", domain.DefaultRestartDelayMs)
	v.SetDefault("stopTimeoutSeconds", domain.DefaultStopTimeoutSeconds)
	v.SetDefault("metrics.listenAddress", "")
	v.SetDefault("log.level", domain.DefaultLogLevel)
}

// LoadConfig layers defaults, the optional YAML file, ZAPRETD_* environment
// variables and changed flags, in increasing precedence.
func LoadConfig(opts LoadOptions) (Config, error) {
	v := newConfigViper()
	if opts.Flags != nil {
		for key, name := range flagBindings {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	root, err := resolveRoot(v.GetString("root"))
	if err != nil {
		return Config{}, err
	}

	configFile := strings.TrimSpace(opts.ConfigPath)
	explicit := configFile != ""
	if !explicit {
		configFile = filepath.Join(root, domain.DefaultConfigFileName)
	}
	if _, statErr := os.Stat(configFile); statErr == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("read config: %w", statErr)
	} else {
		configFile = ""
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// The file may relocate the root, but flags and env already had their say.
	if strings.TrimSpace(raw.Root) != "" {
		if root, err = resolveRoot(raw.Root); err != nil {
			return Config{}, err
		}
	}

	cfg, errs := normalizeConfig(root, raw)
	if len(errs) > 0 {
		return Config{}, domain.E(domain.CodeInvalidArgument, "config.load", strings.Join(errs, "; "), nil)
	}
	cfg.ConfigFile = configFile
	return cfg, nil
}

// DefaultConfig is the configuration for root with every default applied.
func DefaultConfig(root string) (Config, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return Config{}, err
	}
	v := newConfigViper()
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode defaults: %w", err)
	}
	cfg, errs := normalizeConfig(resolved, raw)
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalizeConfig(root string, raw rawConfig) (Config, []string) {
	var errs []string

	workerName := strings.TrimSpace(raw.WorkerName)
	if workerName == "" {
		errs = append(errs, "workerName must not be empty")
	}
	if strings.ContainsAny(workerName, `/\`) {
		errs = append(errs, fmt.Sprintf("workerName %q must be a bare file name", workerName))
	}

	level, err := zapcore.ParseLevel(strings.TrimSpace(raw.Log.Level))
	if err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}

	delays := []struct {
		name  string
		value int
	}{
		{"settleDelayMs", raw.SettleDelayMs},
		{"spawnDelayMs", raw.SpawnDelayMs},
		{"restartDelayMs", raw.RestartDelayMs},
		{"stopTimeoutSeconds", raw.StopTimeoutSeconds},
	}
	for _, delay := range delays {
		if delay.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", delay.name))
		}
	}
	if raw.StopTimeoutSeconds == 0 {
		errs = append(errs, "stopTimeoutSeconds must be > 0")
	}

	cfg := Config{
		Root:                 root,
		WorkerName:           workerName,
		BinDir:               underRoot(root, raw.BinDir, domain.DefaultBinDirName),
		ProfilesDir:          underRoot(root, raw.ProfilesDir, domain.DefaultProfilesDirName),
		ScratchDir:           underRoot(root, raw.ScratchDir, domain.DefaultScratchDirName),
		SettingsPath:         settings.ResolvePath(root, raw.SettingsPath),
		SettleDelay:          time.Duration(raw.SettleDelayMs) * time.Millisecond,
		SpawnDelay:           time.Duration(raw.SpawnDelayMs) * time.Millisecond,
		RestartDelay:         time.Duration(raw.RestartDelayMs) * time.Millisecond,
		StopTimeout:          time.Duration(raw.StopTimeoutSeconds) * time.Second,
		MetricsListenAddress: strings.TrimSpace(raw.Metrics.ListenAddress),
		LogLevel:             level,
	}
	return cfg, errs
}

// resolveRoot defaults to the directory holding the running executable, where
// the worker binary and profile folders ship.
func resolveRoot(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		trimmed = filepath.Dir(exe)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return abs, nil
}

func underRoot(root, value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = fallback
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Join(root, trimmed)
}
