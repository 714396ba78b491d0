package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nucleus",
	Short: "Nucleus - a local-first AI assistant runtime",
	Long: `Nucleus runs a chat assistant entirely on your machine: a pluggable
LLM backend (native accelerator, in-process quantized model, or a remote
OpenAI-compatible endpoint), retrieval-augmented context from a local or
remote vector store, and a tool-calling loop gated by a permission lattice.

Commands:
  serve   - run the IPC server and metrics endpoint
  index   - index a directory into the vector store
  query   - run a single chat query against a configured backend
  config  - generate and validate nucleus.yaml

Environment Variables:
  OPENAI_API_KEY          For the OpenAI-backed embedding client
  NUCLEUS_REMOTE_API_KEY  For the remote-api provider backend`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The process exit code follows the error kind taxonomy:
// 0 clean, 1 configuration error, 2 provider initialization error, and any
// other error kind falls back to 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(nucleuserr.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Disable the default cobra completion command to avoid duplicate name conflict.
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is nucleus.yaml in $HOME or the current directory)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
// Config loading priority: CLI flags > environment variables > config file > defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("nucleus")
	}

	// Read environment variables with NUCLEUS_ prefix
	viper.SetEnvPrefix("NUCLEUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
