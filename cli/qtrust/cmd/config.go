package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iort-labs/qtrust/logger"
	"github.com/iort-labs/qtrust/observability"
)

/*
baseConfiguration holds the flags shared by all the commands and the
observability built from them before the command runs.
*/
type baseConfiguration struct {
	HomeDir string
	// CfgFile is relative to HomeDir unless absolute.
	CfgFile string
	// LogCfgFile is relative to HomeDir unless absolute.
	LogCfgFile string

	loggerBuilder LoggerFactory
	observe       *observability.Observability
}

const (
	envPrefix = "QT"

	defaultConfigFile       = "config.props"
	defaultQTrustDir        = ".qtrust"
	defaultLoggerConfigFile = "logger-config.yaml"

	// home and config are resolved before viper is set up as they say where
	// the rest of the configuration comes from
	keyHome    = "home"
	keyConfig  = "config"
	keyMetrics = "metrics"
	keyTracing = "tracing"

	flagNameMetricsAddr = "metrics-addr"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("qtrust home directory, $%s when not set (default is %s)", envKey(keyHome), qtrustHomeDir()))
	pf.StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file, $%s when not set (default is $QT_HOME/%s)", envKey(keyConfig), defaultConfigFile))
	pf.String(keyMetrics, "", "metrics exporter, one of: stdout, prometheus. Metrics are not collected when not set")
	pf.String(keyTracing, "", "traces exporter, one of: stdout. Traces are not collected when not set")
	pf.String(flagNameMetricsAddr, "", "address to serve Prometheus scrapes on while the command runs, requires --metrics=prometheus")
	pf.StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file, relative to $QT_HOME unless absolute")
	// no defaults so that only explicitly set values override the logger config file
	pf.String(flagNameLogOutputFile, "", "log file path or one of: stdout, stderr, discard")
	pf.String(flagNameLogLevel, "", "minimum log level, one of: TRACE, DEBUG, INFO, WARN, ERROR, NONE")
	pf.String(flagNameLogFormat, "", "log format, one of: text, json, console, ecs")
}

// load resolves the configuration of the command and sets up logging, metrics and tracing.
func (r *baseConfiguration) load(cmd *cobra.Command) error {
	r.resolveLocations()
	if err := r.applyConfigSources(cmd); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	log, err := r.initLogger(cmd.Flags())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	metrics, errM := cmd.Flags().GetString(keyMetrics)
	tracing, errT := cmd.Flags().GetString(keyTracing)
	metricsAddr, errA := cmd.Flags().GetString(flagNameMetricsAddr)
	if err := errors.Join(errM, errT, errA); err != nil {
		return fmt.Errorf("reading exporter flags: %w", err)
	}
	if r.observe, err = observability.New(metrics, tracing, log); err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	if metricsAddr != "" {
		if err := r.observe.ServeMetrics(cmd.Context(), metricsAddr); err != nil {
			return fmt.Errorf("initializing observability: %w", err)
		}
	}
	return nil
}

// resolveLocations fills in home dir and config file: flag, then environment, then default.
func (r *baseConfiguration) resolveLocations() {
	if r.HomeDir == "" {
		if r.HomeDir = os.Getenv(envKey(keyHome)); r.HomeDir == "" {
			r.HomeDir = qtrustHomeDir()
		}
	}
	if r.CfgFile == "" {
		if r.CfgFile = os.Getenv(envKey(keyConfig)); r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	r.CfgFile = r.pathInHome(r.CfgFile)
}

/*
applyConfigSources sets the flags not given on the command line from
environment (QT_<FLAG_NAME>, dashes replaced with underscores) or from the
config file. Missing config file is not an error.
*/
func (r *baseConfiguration) applyConfigSources(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if _, err := os.Stat(r.CfgFile); err == nil {
		v.SetConfigFile(r.CfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("loading config file %s: %w", r.CfgFile, err)
		}
	}

	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == keyHome || f.Name == keyConfig || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("setting flag %q from configuration: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

/*
initLogger loads the logger configuration file and applies the log flags on
top of it. Only the default configuration file is allowed to be missing.
*/
func (r *baseConfiguration) initLogger(flags *pflag.FlagSet) (*slog.Logger, error) {
	fileName := r.pathInHome(r.LogCfgFile)
	cfg, err := logger.LoadConfiguration(fileName)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || fileName != r.pathInHome(defaultLoggerConfigFile) {
			return nil, err
		}
		cfg = &logger.LogConfiguration{}
	}

	for name, dst := range map[string]*string{
		flagNameLogLevel:      &cfg.Level,
		flagNameLogFormat:     &cfg.Format,
		flagNameLogOutputFile: &cfg.OutputPath,
	} {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, fmt.Errorf("reading flag %q: %w", name, err)
		}
	}

	log, err := r.loggerBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

func (r *baseConfiguration) pathInHome(fileName string) string {
	if filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(r.HomeDir, fileName)
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}

func qtrustHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultQTrustDir)
}
