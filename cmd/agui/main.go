// Command agui runs one turn against an AG-UI server and prints the event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"agui-stream/internal/client"
	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
)

var (
	serverURL string
	transport string
	accept    string
	threadID  string
	markdown  bool
	withTools bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:          "agui",
	Short:        "AG-UI command line client",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Send one user message and stream the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return run(ctx, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "http://localhost:8000", "Server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().StringVar(&transport, "transport", "http", "Transport: http or connect")
	runCmd.Flags().StringVar(&accept, "accept", "", "Accept header for the http transport (SSE when empty)")
	runCmd.Flags().StringVar(&threadID, "thread", "", "Thread to continue (new when empty)")
	runCmd.Flags().BoolVar(&markdown, "markdown", false, "Render the final answer as markdown")
	runCmd.Flags().BoolVar(&withTools, "tools", false, "Declare the demo frontend tools")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newTransport() (client.Transport, error) {
	switch transport {
	case "http":
		tr := client.NewHTTPTransport(strings.TrimRight(serverURL, "/") + "/sse")
		tr.Accept = accept
		return tr, nil
	case "connect":
		return client.NewConnectTransport(nil, serverURL), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

func run(ctx context.Context, prompt string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level})

	tr, err := newTransport()
	if err != nil {
		return err
	}
	a := client.New(client.Config{Transport: tr, Logger: logger})
	a.Subscribe(newPrinter(os.Stdout, !markdown))

	input := domain.RunInput{
		ThreadID: threadID,
		Messages: []domain.Message{{ID: events.GenerateMessageID(), Role: domain.RoleUser, Content: prompt}},
	}
	if withTools {
		if input.Tools, err = demoTools(); err != nil {
			return err
		}
	}

	ch, err := a.Run(ctx, input)
	if err != nil {
		return err
	}
	if err := drain(ch); err != nil {
		return err
	}

	if markdown {
		return renderAnswer(a.State().Messages)
	}
	return nil
}

// drain consumes a run and returns the failure it ended with, if any
func drain(ch <-chan events.Event) error {
	var runErr error
	for ev := range ch {
		if ev.Type() != events.EventTypeRunError {
			continue
		}
		e := ev.(*events.RunErrorEvent)
		if e.Code != "" {
			runErr = fmt.Errorf("%s: %s", e.Code, e.Message)
		} else {
			runErr = errors.New(e.Message)
		}
	}
	return runErr
}

// renderAnswer prints the last assistant message through glamour
func renderAnswer(msgs []domain.Message) error {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleAssistant || msgs[i].Content == "" {
			continue
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		out, err := r.Render(msgs[i].Content)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	return nil
}
