package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ritsufs/internal/config"
	"ritsufs/internal/fs"
	"ritsufs/internal/logging"
	"ritsufs/internal/state"
	"ritsufs/internal/watch"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	exitOK              = 0
	exitFailure         = 1
	exitInvalidSettings = 2
)

var (
	version = "0.1.0"
	logger  = logging.GetLogger()
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return exitCode(cmd.Execute(), stderr)
}

// exitCode prints err and maps it to the process exit code. Validation
// failures are printed one per line.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var verr *config.ValidationError
	if errors.As(err, &verr) {
		for _, problem := range verr.Problems {
			fmt.Fprintln(stderr, problem)
		}
		return exitInvalidSettings
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFailure
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	var configFile string

	cmd := &cobra.Command{
		Use:   "ritsufs <target-folder> <mount-root>",
		Short: "Mount a folder holding one symlink to a random file",
		Long: `ritsufs mounts a read-only folder that contains a single symbolic link.
Every time the link is resolved after the timeout has passed, it points
at another file of the target folder.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				v.Set(config.KeyTargetFolder, args[0])
			}
			if len(args) > 1 {
				v.Set(config.KeyMountRoot, args[1])
			}
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file %s: %w", configFile, err)
				}
			}

			settings, err := config.Load(v)
			if err != nil {
				return err
			}

			closeLog := setupLogging(&settings, cmd.ErrOrStderr())
			defer closeLog()

			if err := config.Validate(afero.NewOsFs(), settings); err != nil {
				return err
			}
			return run(settings)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "read settings from a yaml, json or toml file")
	addSettingsFlags(flags)

	if err := v.BindPFlags(flags); err != nil {
		logger.Error("Failed to bind flags: %v", err)
	}
	v.SetEnvPrefix("RITSUFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func addSettingsFlags(flags *pflag.FlagSet) {
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "time window in which resolutions return the same target")
	flags.Bool(config.KeyVerbose, false, "enable verbose logging")
	flags.Bool(config.KeyPreventRepeats, false, "never return the same target twice in a row")
	flags.Bool(config.KeyUseQueue, false, "return every file once before repeating any")
	flags.String(config.KeyLinkName, config.DefaultLinkName, "name of the symlink inside the mount")
	flags.Bool(config.KeyAllowOther, false, "allow other users to access the mount")
	flags.String(config.KeyLogFile, "", "write logs to this file instead of stderr")
}

// setupLogging routes logs to the diagnostic sink and returns a function
// releasing it.
func setupLogging(settings *config.Settings, stderr io.Writer) func() {
	closeFn := func() {}
	settings.LogSink = stderr
	if settings.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   settings.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
		}
		settings.LogSink = rotating
		closeFn = func() {
			if err := rotating.Close(); err != nil {
				fmt.Fprintf(stderr, "Failed to close log file: %v\n", err)
			}
		}
	}

	logger.SetOutput(settings.LogSink)
	if settings.Verbose {
		logger.SetLevel(logging.LevelDebug)
	}
	return closeFn
}

func run(settings config.Settings) error {
	logger.Info("Starting ritsufs...")
	logger.Debug("Target folder: %s", settings.TargetFolder)
	logger.Debug("Mount point: %s", settings.FileSystemRoot)
	logger.Debug("Link name: %s, timeout: %v, no repeats: %v, queue: %v",
		settings.LinkName, settings.Timeout, settings.PreventRepeats, settings.UseQueue)

	// Watch before scanning so no change between the two is lost
	bridge, err := watch.New(settings.TargetFolder, watch.Options{})
	if err != nil {
		return fmt.Errorf("failed to watch target folder: %w", err)
	}
	defer bridge.Close()

	files, err := state.Scan(afero.NewOsFs(), settings.TargetFolder)
	if err != nil {
		return err
	}
	logger.Info("Tracking %d files", len(files))

	selector := state.NewSelector(state.NewFileIndex(files, settings.UseQueue, nil), state.Options{
		Timeout:        settings.Timeout,
		PreventRepeats: settings.PreventRepeats,
	})
	bridge.Start(selector)

	vfs := fs.NewRitsuFS(fs.NewAdapter(selector, settings.LinkName, nil))
	if err := vfs.Mount(settings.FileSystemRoot, fs.MountOptions(settings.AllowOther)); err != nil {
		return err
	}
	defer vfs.Close()
	// runs before Close so the mount is detached while the connection lives
	defer func() {
		if err := vfs.Unmount(settings.FileSystemRoot); err != nil {
			logger.Error("Unmount error: %v", err)
		}
	}()

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	served := make(chan struct{})
	defer close(served)
	go handleSignals(vfs, settings.FileSystemRoot, sigChan, served)

	logger.Info("Filesystem mounted and ready")
	if err := vfs.Serve(); err != nil {
		return err
	}

	m := bridge.Metrics()
	logger.Info("Clean shutdown complete (%d directory events, %d errors)", m.EventsDelivered, m.Errors)
	return nil
}

// unmounter is the part of the filesystem the signal handler needs.
type unmounter interface {
	Unmount(mountPoint string) error
}

// handleSignals unmounts on every signal until served is closed, so a
// busy mount can be retried with another signal.
func handleSignals(vfs unmounter, mountPoint string, sigChan <-chan os.Signal, served <-chan struct{}) {
	for {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal %v", sig)
			if err := vfs.Unmount(mountPoint); err != nil {
				logger.Error("Unmount error: %v", err)
			}
		case <-served:
			return
		}
	}
}
