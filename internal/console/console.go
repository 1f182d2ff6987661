// Package console is the interactive operator surface. It parses command
// lines and calls the connection controller; it holds no connection state of
// its own.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rickgao/wsctl/internal/connection"
)

const prompt = "Enter Command: "

const helpText = `
Command List:
connect <ws uri>
show <connection id>
list
send <connection id> <message>
close <connection id> [code] [reason]
help: Display help text
quit: Exit the program
`

// maxLine bounds a single input line.
const maxLine = 1 << 20

// Controller is the subset of the connection controller the console drives.
type Controller interface {
	Connect(uri string) (uint64, error)
	Send(id uint64, msg string) error
	Close(id uint64, code int, reason string) error
	Describe(id uint64) (connection.Snapshot, bool)
	List() []connection.Snapshot
}

// Console reads commands from in and writes responses to out.
type Console struct {
	ctrl   Controller
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	prompt bool
}

// New creates a console. Set prompt to false when input is not a terminal.
func New(ctrl Controller, in io.Reader, out io.Writer, prompt bool, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		ctrl:   ctrl,
		in:     in,
		out:    out,
		logger: logger.With("component", "console"),
		prompt: prompt,
	}
}

// Run processes commands until quit, end of input or ctx cancellation.
// Reaching quit or end of input returns nil.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// The reader may stay blocked on in after Run returns; it exits with the
	// process or when in is closed.
	go func() {
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if c.prompt {
			fmt.Fprint(c.out, prompt)
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			c.logger.Debug("input closed")
			return nil
		case line := <-lines:
			if c.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the operator asked to
// quit.
func (c *Console) Execute(line string) bool {
	cmd, err := Parse(line)
	if err != nil {
		c.printParseError(cmd, err)
		return false
	}

	switch cmd.Name {
	case "":
	case CmdQuit:
		return true
	case CmdHelp:
		fmt.Fprint(c.out, helpText)
	case CmdConnect:
		c.connect(cmd)
	case CmdShow:
		c.show(cmd)
	case CmdList:
		c.list()
	case CmdSend:
		c.send(cmd)
	case CmdClose:
		c.close(cmd)
	}
	return false
}

func (c *Console) connect(cmd Command) {
	id, err := c.ctrl.Connect(cmd.Arg)
	if err != nil {
		c.printf("> Connect initialization error: %v", err)
		return
	}
	c.printf("> Created connection with id: %d", id)
}

func (c *Console) show(cmd Command) {
	snap, ok := c.ctrl.Describe(cmd.ID)
	if !ok {
		c.printf("> Unrecognized connection id: %d", cmd.ID)
		return
	}
	fmt.Fprintln(c.out, snap.String())
}

func (c *Console) list() {
	snaps := c.ctrl.List()
	if len(snaps) == 0 {
		c.printf("> No connections")
		return
	}
	for _, s := range snaps {
		c.printf("> [%d] %s %s", s.ID, s.Status, s.URI)
	}
}

func (c *Console) send(cmd Command) {
	err := c.ctrl.Send(cmd.ID, cmd.Arg)
	switch {
	case errors.Is(err, connection.ErrNoSuchConnection):
		c.printf("> No connection found with id: %d", cmd.ID)
	case err != nil:
		c.printf("> Error sending message: %v", err)
	}
}

func (c *Console) close(cmd Command) {
	err := c.ctrl.Close(cmd.ID, cmd.Code, cmd.Arg)
	switch {
	case errors.Is(err, connection.ErrNoSuchConnection):
		c.printf("> No connection found with id: %d", cmd.ID)
	case err != nil:
		c.printf("> Error initiating close: %v", err)
	}
}

func (c *Console) printParseError(cmd Command, err error) {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		c.printf("> Usage: %s", usage.usage)
	case errors.Is(err, errInvalidID):
		c.printf("> Invalid connection id: %s", cmd.Source)
	default:
		c.printf("> Unrecognized command: %s (type help for a list of commands)", cmd.Name)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}
