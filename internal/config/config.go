// Package config builds and validates the settings of a ritsufs mount.
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultTimeout  = 100 * time.Millisecond
	DefaultLinkName = "ritsu"
)

// Keys shared by flags, environment variables and config files.
const (
	KeyTargetFolder   = "target-folder"
	KeyMountRoot      = "mount-root"
	KeyTimeout        = "timeout"
	KeyVerbose        = "verbose"
	KeyPreventRepeats = "no-repeats"
	KeyUseQueue       = "queue"
	KeyLinkName       = "link-name"
	KeyAllowOther     = "allow-other"
	KeyLogFile        = "log-file"
)

// Settings is the validated, read-only configuration of a mount.
type Settings struct {
	// TargetFolder holds the files the link points at.
	TargetFolder string
	// FileSystemRoot is the empty directory the filesystem is mounted on.
	FileSystemRoot string
	// LinkName is the name of the link inside the mount.
	LinkName string
	// Timeout is the debounce window between resolutions.
	Timeout time.Duration

	Verbose        bool
	PreventRepeats bool
	UseQueue       bool
	AllowOther     bool

	// LogFile, when set, receives logs through a rotating writer.
	LogFile string
	// LogSink receives diagnostics. Required when Verbose is set.
	LogSink io.Writer
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyLinkName, DefaultLinkName)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyPreventRepeats, false)
	v.SetDefault(KeyUseQueue, false)
	v.SetDefault(KeyAllowOther, false)
}

// Load reads settings from v. Folder paths are expanded and made
// absolute; nothing is validated.
func Load(v *viper.Viper) (Settings, error) {
	target, err := normalizePath(v.GetString(KeyTargetFolder))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyTargetFolder, err)
	}
	root, err := normalizePath(v.GetString(KeyMountRoot))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyMountRoot, err)
	}
	logFile, err := normalizePath(v.GetString(KeyLogFile))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyLogFile, err)
	}

	return Settings{
		TargetFolder:   target,
		FileSystemRoot: root,
		LinkName:       v.GetString(KeyLinkName),
		Timeout:        v.GetDuration(KeyTimeout),
		Verbose:        v.GetBool(KeyVerbose),
		PreventRepeats: v.GetBool(KeyPreventRepeats),
		UseQueue:       v.GetBool(KeyUseQueue),
		AllowOther:     v.GetBool(KeyAllowOther),
		LogFile:        logFile,
	}, nil
}

func normalizePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
