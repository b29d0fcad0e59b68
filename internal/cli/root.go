package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/config"
)

var (
	cfgFile string
	verbose bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taverto",
	Short: "Taverto - inventory of DB2/QMF query and procedure extracts",
	Long: `Taverto reads QMF extract files and builds an inventory of every query
and procedure in them: the objects each one runs, the tables it reads and
saves, its forms and its file exports. Sensitive data is masked before any
parsing happens.

Results are written as a JSON summary and, optionally, to a SQLite database
that can be queried with 'taverto list' and 'taverto refs'.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .taverto/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads configuration and sets up logging for every command.
func loadConfig(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	loader := config.NewLoader(wd)
	if cfgFile != "" {
		loader = config.NewFileLoader(wd, cfgFile)
	}

	loaded, err := loader.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	logger := logrus.StandardLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	if err := cfg.ApplyLogging(logger); err != nil {
		return err
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.WithField("config", cfgFile).Debug("configuration loaded")
	}
	return nil
}
