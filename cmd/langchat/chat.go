package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/memory"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/rag"
)

const chatHelp = `Commands:
  /help     show this help
  /history  show the remembered conversation
  /clear    forget the conversation
  /exit     leave (also /quit or end of input)`

// chatSession is one interactive conversation.
type chatSession struct {
	model    llm.StreamingChatModel
	memory   memory.ChatMemory
	rag      *rag.System
	topK     int
	toolbox  *llm.Toolbox
	maxSteps int
	out      io.Writer
	errOut   io.Writer
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var (
		system    string
		sessionID string
		useRAG    bool
		useTools  bool
		topK      int
		maxSteps  int
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model, remembering the conversation",
		Long: `Start an interactive chat. Each line is sent to the model together with
the remembered conversation; answers are streamed as they are generated.

With --rag, every question is answered from the indexed documents. With
--tools, the model may call the built-in tools: current_date, add, square
and divide.

` + chatHelp,
		Example: `  langchat chat
  langchat chat --system "You are a terse assistant."
  langchat chat --rag --top-k 5
  langchat chat --tools`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			mem, err := components.Memories.Get(sessionID)
			if err != nil {
				return err
			}
			if system != "" {
				mem.Add(models.SystemMessage(system))
			}
			s := &chatSession{
				model:    components.Model,
				memory:   mem,
				topK:     topK,
				maxSteps: maxSteps,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
			}
			if useRAG {
				s.rag = components.RAG
			}
			if useTools {
				if s.toolbox, err = llm.NewToolbox(llm.BuiltinTools(nil)...); err != nil {
					return err
				}
			}
			return s.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system message for the conversation")
	cmd.Flags().StringVar(&sessionID, "session", "cli", "conversation ID")
	cmd.Flags().BoolVar(&useRAG, "rag", false, "answer from the indexed documents")
	cmd.Flags().BoolVar(&useTools, "tools", false, "let the model call the built-in tools")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "segments to retrieve with --rag (default from rag.top_k)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 5, "model calls allowed per answer with --tools")
	return cmd
}

// run reads lines from in until end of input or /exit. Model errors are
// reported and the conversation continues.
func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "Type a message, /help for commands.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/help":
			fmt.Fprintln(s.out, chatHelp)
			continue
		case "/clear":
			s.memory.Clear()
			fmt.Fprintln(s.out, "Conversation cleared.")
			continue
		case "/history":
			for _, m := range s.memory.Messages() {
				fmt.Fprintln(s.out, m.String())
			}
			continue
		}
		if err := s.turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	}
}

// turn answers one user line.
func (s *chatSession) turn(ctx context.Context, line string) error {
	content := line
	if s.rag != nil {
		docs, err := s.rag.Retrieve(ctx, line, s.topK)
		if err != nil {
			return err
		}
		// with no documents the prompt still tells the model to admit it does not know
		content = rag.BuildPrompt(rag.BuildContext(docs), line)
	}
	s.memory.Add(models.UserMessage(content))

	if s.toolbox != nil {
		history := s.memory.Messages()
		resp, conv, err := llm.RunTools(ctx, s.model, history, s.toolbox, s.maxSteps)
		for _, m := range conv[len(history):] {
			if m.Role == models.RoleTool {
				fmt.Fprintf(s.out, "  [%s] %s\n", m.Name, m.Content)
			}
			s.memory.Add(m)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, resp.Message.Content)
		return nil
	}

	resp, err := s.model.ChatStream(ctx, &llm.ChatRequest{Messages: s.memory.Messages()}, llm.StreamHandlerFunc(func(token string) {
		fmt.Fprint(s.out, token)
	}))
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	s.memory.Add(resp.Message)
	return nil
}
