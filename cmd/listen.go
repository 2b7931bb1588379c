package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/interpreter"
	"github.com/witanlabs/voicesheet/stream"
	"github.com/witanlabs/voicesheet/workbook"
)

var listenStreamURL string

var listenCmd = &cobra.Command{
	Use:   "listen <file> [flags]",
	Short: "Apply utterances or plans received over a websocket",
	Long: `Connect to a websocket stream and apply each message to the workbook,
saving after every applied plan.

Each inbound message is JSON, either {"id":"1","text":"sum column A"} (sent
to the planner) or {"id":"2","plan":{"action":"bold","range":"A1"}}. Each is
answered with {"id","ok","action","target","error"} before the next is read.

The command runs until the stream closes or it is interrupted.

Examples:
  voicesheet listen report.xlsx --stream-url ws://localhost:9000/stream`,
	Args: cobra.ExactArgs(1),
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenStreamURL, "stream-url", "", "Websocket URL to read from (env: VOICESHEET_STREAM_URL)")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	path := args[0]

	url := listenStreamURL
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url = cfg.StreamURL
	}
	if url == "" {
		return errors.New("no stream URL: pass --stream-url or run 'voicesheet config set stream_url <url>'")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	planner, err := newPlannerClient()
	if err != nil {
		return err
	}
	key, err := resolveAPIKey()
	if err != nil {
		return err
	}

	opts, err := interpreterOptions()
	if err != nil {
		return err
	}

	wb, err := workbook.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()
	wb.TrackChanges = true

	header := http.Header{}
	if key != "" {
		header.Set("Authorization", "Bearer "+key)
	}
	l := &stream.Listener{
		URL:      url,
		Header:   header,
		Planner:  planner,
		Executor: interpreter.New(wb, logger, opts),
		Logger:   logger,
		Applied: func(res *interpreter.Result) error {
			if !jsonOutput {
				printResult(res, path)
			}
			return wb.Save()
		},
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := l.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
