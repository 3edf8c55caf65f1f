package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/mailcd/internal/cmd/config"
	appconfig "github.com/Iron-Ham/mailcd/internal/config"
	"github.com/Iron-Ham/mailcd/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "mb",
	Short: "Build pipelines over a content-addressed artifact store",
	Long: `mb runs the stages of a pipeline definition (pipeline.yml) on the local
host or inside containers. Before a stage runs, the packages named in its
inbox are fetched from the artifact store; afterwards the files selected by
its outbox are published back to the store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	workspaceDir string
	debugMode    bool
	verbose      bool
)

// Execute runs the root command and returns the process exit status.
func Execute() (code int) {
	defer func() {
		if r := recover(); r != nil {
			w := rootCmd.ErrOrStderr()
			fmt.Fprintf(w, "internal error: %v\n", r)
			_, _ = w.Write(debug.Stack())
			code = errors.ExitInternal
		}
	}()

	err := rootCmd.Execute()
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return errors.ExitCode(err)
}

// reportError prints err and, for ambiguous lookups, every candidate.
// Internal errors also get their cause chain; --debug adds the type of each
// link.
func reportError(w io.Writer, err error) {
	if errors.IsUserFacing(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
	} else {
		fmt.Fprintf(w, "internal error: %v\n", err)
	}

	var ambiguous *errors.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		for _, m := range ambiguous.Matches {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	if errors.IsRetryable(err) {
		fmt.Fprintln(w, "  the operation may succeed if retried")
	}
	if errors.ExitCode(err) != errors.ExitInternal {
		return
	}
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		if debugMode {
			fmt.Fprintf(w, "  caused by: %v (%T)\n", e, e)
		} else {
			fmt.Fprintf(w, "  caused by: %v\n", e)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/mailcd/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "write debug logs and print internal error details")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print stage environments and the output of successful steps")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewValidationError(err.Error())
	})

	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/mailcd")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(appconfig.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., MB_STORE_ROOT for store.root
	viper.SetEnvKeyReplacer(appconfig.EnvKeyReplacer)

	// Read config file if it exists (ignore error if not found)
	if err := viper.ReadInConfig(); err != nil && debugMode {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
}
