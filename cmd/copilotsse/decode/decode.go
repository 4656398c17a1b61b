// Package decodecmder provides the decode command, which decodes captured
// copilot stream text into events and the reply they assemble.
package decodecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/pkg/cliui"
	"github.com/wso2/copilotsse/pkg/config"
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/logger"
	"github.com/wso2/copilotsse/pkg/sse"
)

type decodeCommander struct {
	follow        bool
	render        bool
	quiet         bool
	jsonOut       bool
	strict        bool
	join          string
	maxFrameBytes int
	debug         bool

	decoder config.DecoderConfig
	logger  *slog.Logger
}

const decodeLongDesc string = `Decode copilot stream text.

Reads SSE text from a file, or from stdin when the argument is "-" or
omitted, and prints every decoded event followed by the assembled reply.
Frames that fail to decode are reported and skipped; the command exits
non-zero if any did.

Use --follow to keep decoding a capture file as it grows, --render to
render the reply as markdown, and --json for one JSON object per event.

Examples:
  copilotsse decode reply.sse
  curl -sN http://localhost:8080/chat/stream -d @req.json | copilotsse decode
  copilotsse decode --follow --quiet capture.sse
  copilotsse decode --join $'\n' --strict reply.sse`

const decodeShortDesc string = "Decode copilot stream text into events"

var decodeFlags = []string{
	config.FlagStrict,
	config.FlagJoin,
	config.FlagMaxFrameBytes,
}

// jsonEvent is one line of --json output. Failed frames carry Error instead
// of a payload.
type jsonEvent struct {
	Seq     int           `json:"seq"`
	Kind    string        `json:"kind"`
	Payload copilot.Event `json:"payload,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func NewDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, decodeFlags)
			cmder.decoder = config.DecoderFromViper(v)

			if cmder.jsonOut && cmder.render {
				return errors.New("--json and --render cannot be used together")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return cmder.run(cmd, path)
		},
	}

	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Flags, config.FlagJoin, &cmder.join)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxFrameBytes, &cmder.maxFrameBytes)
	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep decoding the file as it grows")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render the assembled reply as markdown")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only the assembled reply")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print one JSON object per event")

	return cmd
}

func (c *decodeCommander) run(cmd *cobra.Command, path string) error {
	c.logger = logger.New(logger.ForCLI(c.debug))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := c.open(ctx, cmd, path)
	if err != nil {
		return err
	}
	defer src.Close()

	reg, err := copilot.NewRegistry()
	if err != nil {
		return fmt.Errorf("creating event registry: %w", err)
	}

	opts := append([]sse.Option{sse.WithLogger(c.logger)}, c.decoder.Options()...)
	reader := sse.NewTeeReader(src, nil, copilot.NewDecoder(reg, opts...))

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	enc := json.NewEncoder(out)

	var (
		transcript copilot.Transcript
		seq        int
		failures   int
	)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var fe *sse.FrameError
		if errors.As(err, &fe) {
			failures++
			if c.jsonOut {
				if err := enc.Encode(jsonEvent{Seq: fe.Seq, Kind: fe.Event, Error: fe.Err.Error()}); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(errOut, cliui.FrameErrorLine(fe))
			continue
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}

		seq++
		transcript.Apply(ev)

		switch {
		case c.jsonOut:
			if err := enc.Encode(jsonEvent{Seq: seq, Kind: string(ev.Kind()), Payload: ev}); err != nil {
				return err
			}
		case !c.quiet:
			fmt.Fprintln(out, cliui.EventLine(seq, ev))
		}
	}

	if !c.jsonOut {
		if c.quiet && !c.render {
			fmt.Fprintln(out, transcript.Content)
		} else {
			cliui.PrintTranscript(out, &transcript, c.render)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d frame(s) failed to decode", failures)
	}
	return nil
}

// open returns the stream source for path: stdin for "-", a following
// reader with --follow, otherwise the file itself.
func (c *decodeCommander) open(ctx context.Context, cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		if c.follow {
			return nil, errors.New("--follow needs a file argument")
		}
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	if c.follow {
		return newFollowReader(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
