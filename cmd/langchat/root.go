package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/pkg/utils"
)

var version = "dev"

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "langchat",
		Short: "Vector similarity, retrieval-augmented answers and chat over your documents",
		Long: `langchat - embeddings, document retrieval and chat from the command line.

Configuration is read from --config, or ./config.yaml when present, then
overridden by .env, .env.local and LANGCHAT_* environment variables.

Examples:
  # Compare two sentences
  langchat similarity "The cat sat" "A cat was sitting"

  # Index a folder, then ask about it
  langchat index ./docs
  langchat ask "What is the refund policy?"

  # Serve the HTTP API and watch the configured directories
  langchat serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config.yaml when present)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newSimilarityCmd(opts),
		newRankCmd(opts),
		newIndexCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the config named by --config. Without the flag it uses
// config.yaml in the working directory if there is one, and built-in
// defaults otherwise. Returns the path that was loaded, "" for defaults.
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	path := o.configPath
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger for a one-shot command.
// Config warnings are logged before returning.
func (o *globalOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logWarnings(logger, cfg)
	return cfg, logger, nil
}

func logWarnings(logger *zap.Logger, cfg *config.Config) {
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}
}
