package domain

import "time"

const (
	DefaultWorkerName         = "winws"
	DefaultBinDirName         = "bin"
	DefaultProfilesDirName    = "configs"
	DefaultScratchDirName     = "temp_configs"
	DefaultSettingsFileName   = "settings.db"
	DefaultConfigFileName     = "zapretd.yaml"
	DefaultProfileExtension   = ".conf"
	DefaultSettleDelay        = 500 * time.Millisecond
	DefaultSpawnDelay         = 100 * time.Millisecond
	DefaultRestartDelay       = 500 * time.Millisecond
	DefaultStopTimeout        = 5 * time.Second
	DefaultSettleDelayMs      = 500
	DefaultSpawnDelayMs       = 100
	DefaultRestartDelayMs     = 500
	DefaultStopTimeoutSeconds = 5
	DefaultLogLevel           = "info"
)

// HostlistMarker is the worker parameter removed when an address-set toggle applies.
const HostlistMarker = "--hostlist="

// CommentPrefix starts an ignored line in a profile file.
const CommentPrefix = "#"
