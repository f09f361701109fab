package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/corpus"
	"github.com/lazypower/recall/internal/observe"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagDataDir  string
	flagBackend  string
	flagVerbose  bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:           "recall",
	Short:         "Retrieval over TTL-managed memory and pages",
	Long:          "Recall keeps agent memory abstracts and document pages with optional expiry, and searches them by keyword or embedding similarity.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to config file (default ~/.recall/config.yaml)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory holding persisted state")
	pf.StringVar(&flagBackend, "backend", "", "Storage backend: file or sqlite")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log at debug level")
	pf.BoolVar(&flagJSONLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// configPath resolves --config, falling back to config.yaml in the default
// data directory.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return filepath.Join(config.DefaultDataDir(), "config.yaml")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{
		Storage: config.StorageConfig{
			Backend: flagBackend,
			DataDir: flagDataDir,
		},
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newObserver() *observe.Observer {
	if flagJSONLogs {
		return observe.NewJSON(os.Stderr, flagVerbose)
	}
	return observe.New(os.Stderr, flagVerbose)
}

// openCorpus loads the config and opens the corpus it names. Stores that
// were reset because their snapshot was unreadable are reported on stderr.
func openCorpus(cmd *cobra.Command, mutate ...func(*config.Config)) (*corpus.Corpus, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	for _, m := range mutate {
		m(cfg)
	}
	c, err := corpus.Open(cfg, newObserver())
	if err != nil {
		return nil, nil, err
	}
	for _, lerr := range c.LoadErrors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (starting empty)\n", lerr)
	}
	return c, cfg, nil
}
