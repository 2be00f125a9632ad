// Package repl implements the interactive console loop: read a line, route
// it through a Handler and print the selected agent and its answer.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hupe1980/agentcrew"
	"github.com/hupe1980/agentcrew/logging"
)

// Console strings.
const (
	Welcome = "Welcome to the interactive Multi-Agent system. Type 'quit' to exit."
	Prompt  = "\nYou: "
	Goodbye = "Exiting the program. Goodbye!"
)

// Handler answers one user line.
type Handler interface {
	Handle(ctx context.Context, input string) (*agentcrew.Response, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, input string) (*agentcrew.Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, input string) (*agentcrew.Response, error) {
	return f(ctx, input)
}

// IsQuit reports whether line asks to leave the loop.
func IsQuit(line string) bool {
	return strings.ToLower(strings.TrimSpace(line)) == "quit"
}

// Options configures a Loop.
type Options struct {
	In  io.Reader
	Out io.Writer
	// ShowMetadata prints the additional response parameters after the answer.
	ShowMetadata bool
	Logger       logging.Logger
}

// Loop is the read-eval-print loop.
type Loop struct {
	handler      Handler
	in           *bufio.Scanner
	out          io.Writer
	showMetadata bool
	logger       logging.Logger
}

// New creates a loop reading stdin and writing stdout by default.
func New(h Handler, optFns ...func(o *Options)) *Loop {
	opts := Options{In: os.Stdin, Out: os.Stdout}
	for _, fn := range optFns {
		fn(&opts)
	}

	sc := bufio.NewScanner(opts.In)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Loop{
		handler:      h,
		in:           sc,
		out:          opts.Out,
		showMetadata: opts.ShowMetadata,
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// Run drives the loop until the user quits, input ends or ctx is done.
// Handler errors are printed and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprintln(l.out, Welcome)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(l.out, Prompt)

		if !l.in.Scan() {
			if err := l.in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(l.out)
			fmt.Fprintln(l.out, Goodbye)
			return nil
		}

		input := strings.TrimSpace(l.in.Text())
		if IsQuit(input) {
			fmt.Fprintln(l.out, Goodbye)
			return nil
		}
		if input == "" {
			continue
		}

		resp, err := l.handler.Handle(ctx, input)
		if err != nil {
			l.logger.Error("repl.request_failed", "error", err.Error())
			fmt.Fprintf(l.out, "\nError: %v\n", err)
			continue
		}

		l.Print(resp)
	}
}

// Ask prints label and reads one line from the loop's input. It answers
// user proxy turns while a request is running.
func (l *Loop) Ask(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(l.out, label)

	if !l.in.Scan() {
		if err := l.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}

	return strings.TrimSpace(l.in.Text()), nil
}

// Print writes the routing metadata and answer of resp.
func (l *Loop) Print(resp *agentcrew.Response) {
	fmt.Fprintln(l.out, "\nMetadata:")
	fmt.Fprintf(l.out, "Selected Agent: %s\n", resp.Metadata.AgentName)

	if resp.IsNoAgent() {
		fmt.Fprintf(l.out, "Response: %s\n", resp.String())
		return
	}

	fmt.Fprintf(l.out, "Response: %s\n", resp.Output)

	if l.showMetadata && len(resp.Metadata.AdditionalParams) > 0 {
		keys := make([]string, 0, len(resp.Metadata.AdditionalParams))
		for k := range resp.Metadata.AdditionalParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(l.out, "%s: %s\n", k, resp.Metadata.AdditionalParams[k])
		}
	}
}
