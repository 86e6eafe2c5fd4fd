package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/erwt/internal/app"
	"github.com/zjrosen/erwt/internal/config"
	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/paths"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "erwt",
	Short: "Host process for the erwt main and renderer channels",
	Long: `Runs the erwt host: user data persistence, the error log, the scratch store and
XML conversion, served over named channels between a main and a renderer side.

The host runs until interrupted.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runHost,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/erwt/config.yaml)")
	rootCmd.PersistentFlags().String("user-data", "",
		"user data directory (overrides config and $"+paths.EnvUserData+")")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("user_data_dir", rootCmd.PersistentFlags().Lookup("user-data"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// setDefaults registers every config key so env and flag overrides resolve.
func setDefaults(v *viper.Viper) {
	d := config.Defaults()
	v.SetDefault("app_name", d.AppName)
	v.SetDefault("user_data_dir", d.UserDataDir)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("ipc.send_channels", d.IPC.SendChannels)
	v.SetDefault("ipc.receive_channels", d.IPC.ReceiveChannels)
	v.SetDefault("ipc.remote_url", d.IPC.RemoteURL)
	v.SetDefault("ipc.remote_namespace", d.IPC.RemoteNamespace)
	v.SetDefault("temp.default_ttl", d.Temp.DefaultTTL)
	v.SetDefault("temp.cleanup_interval", d.Temp.CleanupInterval)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("xml.keep_whitespace", d.XML.KeepWhitespace)
	v.SetDefault("xml.cache_ttl", d.XML.CacheTTL)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("flags", d.Flags)
}

// decodeConfig unmarshals v, applying the environment toggles.
func decodeConfig(v *viper.Viper) (config.Config, error) {
	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if os.Getenv("ERWT_DEBUG") == "1" {
		c.Debug = true
	}
	return c, nil
}

func initConfig() {
	setDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .erwt/config.yaml (current directory)
		// 2. <user config dir>/erwt/config.yaml
		if _, err := os.Stat(".erwt/config.yaml"); err == nil {
			viper.SetConfigFile(".erwt/config.yaml")
		} else if userPath, err := paths.DefaultConfigPath("erwt"); err == nil {
			viper.AddConfigPath(filepath.Dir(userPath))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default in the user config dir
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if defaultPath, perr := paths.DefaultConfigPath("erwt"); perr == nil {
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
			// If write fails, just continue with defaults (no config file)
		} else {
			fmt.Fprintf(os.Stderr, "erwt: reading config: %v\n", err)
		}
	}

	decoded, err := decodeConfig(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "erwt: %v\n", err)
		decoded = config.Defaults()
	}
	cfg = decoded
}

// initLogging opens the log file next to the user data unless log.file is set.
func initLogging(c config.Config) (func(), error) {
	path := c.Log.File
	if path == "" {
		dir, err := paths.UserDataDir(c.AppName, c.UserDataDir)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, c.AppName+".log")
	}
	cleanup, err := log.Init(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	level := log.ParseLevel(c.Log.Level)
	if c.Debug {
		level = log.LevelDebug
	}
	log.SetMinLevel(level)
	return cleanup, nil
}

// startHost initialises logging and returns a started host. The returned
// cleanup closes both.
func startHost(ctx context.Context, c config.Config) (*app.Host, func(), error) {
	closeLog, err := initLogging(c)
	if err != nil {
		return nil, nil, err
	}

	host, err := app.New(c)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	if err := host.Start(ctx); err != nil {
		_ = host.Close()
		closeLog()
		return nil, nil, err
	}
	return host, func() {
		if err := host.Close(); err != nil {
			log.ErrorErr(log.CatApp, "Host shutdown", err)
		}
		closeLog()
	}, nil
}

func runHost(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, cleanup, err := startHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info(log.CatApp, "Running", "config", viper.ConfigFileUsed(), "dir", host.Files().Dir())
	fmt.Fprintf(cmd.OutOrStdout(), "erwt running, user data in %s (Ctrl+C to stop)\n", host.Files().Dir())

	<-ctx.Done()
	log.Info(log.CatApp, "Shutting down")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
