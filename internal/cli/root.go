package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
)

// Version is set at build time
var Version = "v0.3.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "poisignal",
	Short: "poisignal - POI signal triangulation and enrichment",
	Long: `poisignal gathers evidence about a point of interest from independent
sources (a local archive, Wikipedia, Wikidata, DuckDuckGo, OpenStreetMap and
web search), scores every signal, merges the trusted ones and turns them into
guide text through a pluggable language model backend.

Results are cached locally and, optionally, in a shared remote cache.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("poisignal " + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.poisignal/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
	}
}

// setupViper registers defaults, environment bindings and the config file
func setupViper(v *viper.Viper, file string) error {
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	v.SetEnvPrefix("POISIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Secrets are omitted from the defaults, so they need explicit bindings
	_ = v.BindEnv("llm.api_key", "POISIGNAL_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers.web_search.primary_api_key", "POISIGNAL_PROVIDERS_WEB_SEARCH_PRIMARY_API_KEY")
	_ = v.BindEnv("providers.web_search.fallback_api_key", "POISIGNAL_PROVIDERS_WEB_SEARCH_FALLBACK_API_KEY")
	_ = v.BindEnv("cache.remote_url", "POISIGNAL_CACHE_REMOTE_URL")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home + "/.poisignal")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// newLogger builds the process logger from the loaded configuration
func newLogger(cfg model.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Format)
}
