package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LangChat/ai-tutorials/internal/cli"
	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/models"
)

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		topK        int
		output      string
		showContext bool
		stream      bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieve the documents most relevant to the question, place them in the
prompt and ask the chat model. The question is all arguments joined by spaces.`,
		Example: `  langchat ask What is the capital of France?
  langchat ask --top-k 5 --show-context "How do goroutines work?"
  langchat ask -o json "Summarize the refund policy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := buildQuestion(args)
			if question == "" {
				return models.ErrEmptyQuery
			}
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if !cmd.Flags().Changed("top-k") {
				topK = cfg.RAG.TopK
			}

			ctx := cmd.Context()
			components, err := initializeComponents(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()
			out := cmd.OutOrStdout()

			if stream && format == cli.OutputText {
				res, err := components.RAG.QueryStream(ctx, question, topK, llm.StreamHandlerFunc(func(token string) {
					fmt.Fprint(out, token)
				}))
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				if err := cli.WriteSources(out, res.RetrievedDocuments); err != nil {
					return err
				}
				if showContext {
					fmt.Fprintf(out, "\n--- Context ---\n%s", res.Context)
				}
				return nil
			}

			res, err := components.RAG.Query(ctx, question, topK)
			if err != nil {
				return err
			}
			return cli.WriteRagResult(out, res, format, showContext)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "number of segments to retrieve (default from rag.top_k)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "print the retrieved context after the answer")
	cmd.Flags().BoolVar(&stream, "stream", true, "stream the answer as it is generated (text output only)")
	return cmd
}

// buildQuestion joins all positional args with spaces so multi-word
// questions work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
