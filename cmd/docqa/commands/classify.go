package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/pipeline"
)

// NewClassifyCmd constructs the `docqa classify` command.
func NewClassifyCmd() *cobra.Command {
	var flags documentFlags
	var terms string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Pick one category for a document",
		Long: `Pick exactly one of the given categories for a document.

Examples:
  docqa classify --file contract.pdf --terms "invoice,contract,letter"
  docqa classify -f notes.md --terms greek,latin --quiet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := pipeline.ParseTermList(terms)
			if len(list) == 0 {
				return errors.New("--terms must name at least one category")
			}
			return runDocument(cmd, &flags, func(ctx context.Context, p *pipeline.Pipeline, u extract.Upload, sink generator.Sink) (any, error) {
				res, err := p.Classify(ctx, u, list, sink)
				if err != nil {
					return nil, err
				}
				return res, nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&terms, "terms", "t", "", "Comma-separated candidate categories")
	_ = cmd.MarkFlagRequired("terms")
	return cmd
}

// NewPromptCmd constructs the `docqa prompt` command.
func NewPromptCmd() *cobra.Command {
	var flags documentFlags
	var question string

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Answer a question about a document",
		Long: `Answer a free-form question using only the content of a document.

Examples:
  docqa prompt --file report.docx --question "Who signed the report?"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocument(cmd, &flags, func(ctx context.Context, p *pipeline.Pipeline, u extract.Upload, sink generator.Sink) (any, error) {
				res, err := p.Prompt(ctx, u, question, sink)
				if err != nil {
					return nil, err
				}
				return res, nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&question, "question", "", "Question to answer")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

// NewSummarizeCmd constructs the `docqa summarize` command.
func NewSummarizeCmd() *cobra.Command {
	var flags documentFlags

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize and tag a document",
		Long: `Write a short summary of a document and a list of tags for it.

If one of the two steps fails, the result of the other is still printed
before the error is reported.

Examples:
  docqa summarize --file sheet.xlsx
  SUMMARY_SIZE=80 TAGS_NUMBER=5 docqa summarize -f book.pdf`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocument(cmd, &flags, func(ctx context.Context, p *pipeline.Pipeline, u extract.Upload, sink generator.Sink) (any, error) {
				res, err := p.Summarize(ctx, u, sink)
				if err != nil && res.Summary == "" && res.Tags == "" {
					return nil, err
				}
				return res, err
			})
		},
	}

	flags.register(cmd)
	return cmd
}

// NewDescribeCmd constructs the `docqa describe` command.
func NewDescribeCmd() *cobra.Command {
	var flags documentFlags

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe a picture",
		Long: `Ask a vision-capable model for a short description of an image.

PNG, JPEG, GIF and WebP are accepted; the type is taken from the file
content, not its name.

Examples:
  docqa describe --file scan.png
  SUMMARY_LANGUAGE=italian docqa describe -f photo.jpg --quiet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocument(cmd, &flags, func(ctx context.Context, p *pipeline.Pipeline, u extract.Upload, sink generator.Sink) (any, error) {
				res, err := p.Describe(ctx, u, sink)
				if err != nil {
					return nil, err
				}
				return res, nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}
