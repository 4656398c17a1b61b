// Package streamcmder provides the stream command, which sends prompts to a
// copilot backend and prints the reply as it streams in.
package streamcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/pkg/cliui"
	"github.com/wso2/copilotsse/pkg/config"
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/copilot/client"
	"github.com/wso2/copilotsse/pkg/dotdir"
	"github.com/wso2/copilotsse/pkg/logger"
	"github.com/wso2/copilotsse/pkg/sse"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("copilot> ")
)

type streamCommander struct {
	target        string
	model         string
	contextFiles  []string
	fresh         bool
	render        bool
	strict        bool
	join          string
	maxFrameBytes int
	debug         bool
	configDir     string

	decoder config.DecoderConfig
	client  *client.Client
	logger  *slog.Logger
}

const streamLongDesc string = `Send a prompt to a copilot backend and stream the reply.

The prompt is taken from the arguments. Without arguments an interactive
session starts and every line read from stdin is sent as the next turn.

The conversation is saved in the .copilotsse/ directory, so the next
"copilotsse stream" continues it. Use --new to start over.

Point --target at "copilotsse serve proxy" to have every reply recorded.

Examples:
  copilotsse stream "How do I list integrations?"
  copilotsse stream --new --context main.bal "Why does this fail to compile?"
  copilotsse stream --target http://localhost:8080 --render`

const streamShortDesc string = "Stream a copilot reply"

var streamFlags = []string{
	config.FlagTarget,
	config.FlagStrict,
	config.FlagJoin,
	config.FlagMaxFrameBytes,
}

func NewStreamCmd() *cobra.Command {
	cmder := &streamCommander{}

	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: streamShortDesc,
		Long:  streamLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, streamFlags)

			cmder.target = v.GetString("client.target")
			cmder.decoder = config.DecoderFromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd, strings.TrimSpace(strings.Join(args, " ")))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Flags, config.FlagJoin, &cmder.join)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxFrameBytes, &cmder.maxFrameBytes)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to request (backend default when empty)")
	cmd.Flags().StringSliceVarP(&cmder.contextFiles, "context", "c", nil, "Files to attach as editor context")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of continuing the saved one")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render each reply as markdown once it completes")

	return cmd
}

func (c *streamCommander) run(cmd *cobra.Command, prompt string) error {
	c.logger = logger.New(logger.ForCLI(c.debug))

	var err error
	c.client, err = client.New(c.target,
		client.WithDecoderOptions(c.decoder.Options()...),
		client.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	items, err := readContext(c.contextFiles)
	if err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	if c.fresh {
		if err := ddm.ClearConversation(c.configDir); err != nil {
			return err
		}
	}

	state, err := ddm.LoadConversation(c.configDir)
	if err != nil {
		return err
	}
	if state == nil {
		state = &dotdir.ConversationState{}
	}

	out := cmd.OutOrStdout()
	if prompt != "" {
		if err := c.turn(cmd.Context(), out, cmd.ErrOrStderr(), state, prompt, items); err != nil {
			return err
		}
		return ddm.SaveConversation(state, c.configDir)
	}

	fmt.Fprintln(out)
	if len(state.Messages) > 0 {
		fmt.Fprintf(out, "  %s Continuing conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
		)
	} else {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Target:"), cliui.ValueStyle.Render(c.target))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.turn(cmd.Context(), out, cmd.ErrOrStderr(), state, input, items); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s %v\n", cliui.FailMark, err)
			continue
		}
		if err := ddm.SaveConversation(state, c.configDir); err != nil {
			return err
		}

		// Context is attached to the first turn only.
		items = nil
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// turn sends prompt with the conversation so far and streams the reply to
// out. On success state holds both new messages and the reply's stream ID;
// on failure state is unchanged.
func (c *streamCommander) turn(ctx context.Context, out, errOut io.Writer, state *dotdir.ConversationState, prompt string, items []client.ContextItem) error {
	messages := make([]client.Message, 0, len(state.Messages)+1)
	for _, m := range state.Messages {
		messages = append(messages, client.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, client.Message{Role: "user", Content: prompt})

	req := &client.Request{
		Messages: messages,
		Model:    c.model,
		Context:  items,
	}

	if !c.render {
		fmt.Fprint(out, assistantPrompt)
	}

	var (
		transcript *copilot.Transcript
		err        error
	)
	if c.render {
		// Nothing is printed until the reply is complete, so show progress.
		stepErr := cliui.Step(errOut, "Waiting for copilot", func() error {
			transcript, err = c.client.Stream(ctx, req, nil)
			if transcript == nil {
				return err
			}
			if transcript.Failed() {
				return errors.New("copilot reported an error")
			}
			return nil
		})
		if transcript == nil {
			return stepErr
		}
	} else {
		transcript, err = c.client.Stream(ctx, req, func(ev copilot.Event) error {
			if delta, ok := ev.(copilot.ContentBlockDelta); ok {
				fmt.Fprint(out, delta.Text)
			}
			return nil
		})
		if transcript == nil {
			fmt.Fprintln(out)
			return err
		}
	}

	if failed := sse.FrameErrors(err); len(failed) > 0 {
		for _, fe := range failed {
			c.logger.Debug("skipped malformed frame", "seq", fe.Seq, "event", fe.Event, "error", fe.Err)
		}
		fmt.Fprintf(errOut, "  %s\n", cliui.WarnStyle.Render(fmt.Sprintf("%d frame(s) failed to decode", len(failed))))
	}

	if c.render {
		cliui.PrintTranscript(out, transcript, true)
	} else {
		fmt.Fprintln(out)
		for _, msg := range transcript.Errors {
			fmt.Fprintf(errOut, "  %s %s\n", cliui.FailMark, msg)
		}
	}

	if transcript.Failed() {
		return errors.New("copilot reported an error")
	}

	state.StreamID = req.StreamID
	state.Messages = append(state.Messages,
		dotdir.ConversationMessage{Role: "user", Content: prompt},
		dotdir.ConversationMessage{Role: "assistant", Content: transcript.Content},
	)

	return nil
}

// readContext loads each file as a context item named by its base name.
func readContext(paths []string) ([]client.ContextItem, error) {
	items := make([]client.ContextItem, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading context file: %w", err)
		}
		items = append(items, client.ContextItem{Name: filepath.Base(p), Content: string(data)})
	}
	return items, nil
}
