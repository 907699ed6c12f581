// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa: classify, query and summarize documents with an LLM",
		Long: `docqa extracts the text of a PDF, DOCX, XLSX, Markdown or plain text
document, indexes it in a vector store and answers with an LLM grounded in
the retrieved passages.

Model and embedding providers are selected via MODEL_PROVIDER and
EMBEDDING_PROVIDER or a YAML config file (~/.docqa/config.yaml).
See 'docqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// The logger is rebuilt after Load because the file may set
			// LOG_LEVEL or LOG_FORMAT.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewClassifyCmd(),
		NewPromptCmd(),
		NewSummarizeCmd(),
		NewDescribeCmd(),
		NewVersionCmd(),
	)

	return root
}
