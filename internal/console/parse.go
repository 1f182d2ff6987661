package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// Command names.
const (
	CmdConnect = "connect"
	CmdShow    = "show"
	CmdList    = "list"
	CmdSend    = "send"
	CmdClose   = "close"
	CmdHelp    = "help"
	CmdQuit    = "quit"
)

var errInvalidID = errors.New("invalid connection id")

type usageError struct {
	usage string
}

func (e usageError) Error() string {
	return "usage: " + e.usage
}

// Command is one parsed operator line.
type Command struct {
	Name   string
	ID     uint64
	Code   int    // close only
	Arg    string // uri for connect, message for send, reason for close
	Source string // the raw token that named the id
}

// Parse turns an input line into a Command. Blank lines parse to a zero
// Command with an empty Name.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, nil
	}

	name, rest := nextToken(line)
	switch name {
	case "-q", "exit":
		name = CmdQuit
	case "-h":
		name = CmdHelp
	}
	cmd := Command{Name: name}

	switch name {
	case CmdQuit, CmdHelp, CmdList:
		return cmd, nil

	case CmdConnect:
		cmd.Arg = strings.TrimSpace(rest)
		if cmd.Arg == "" {
			return cmd, usageError{usage: "connect <ws uri>"}
		}
		return cmd, nil

	case CmdShow:
		if err := cmd.parseID(rest); err != nil {
			return cmd, err
		}
		return cmd, nil

	case CmdSend:
		tok, msg := nextToken(rest)
		if err := cmd.parseID(tok); err != nil {
			return cmd, err
		}
		cmd.Arg = msg
		return cmd, nil

	case CmdClose:
		tok, rest := nextToken(rest)
		if err := cmd.parseID(tok); err != nil {
			return cmd, err
		}
		cmd.Code = websocket.CloseNormalClosure
		if codeTok, reason := nextToken(rest); codeTok != "" {
			if code, err := strconv.Atoi(codeTok); err == nil {
				cmd.Code = code
				rest = reason
			}
		}
		cmd.Arg = strings.TrimSpace(rest)
		return cmd, nil
	}

	return cmd, fmt.Errorf("unrecognized command %q", name)
}

func (c *Command) parseID(tok string) error {
	tok = strings.TrimSpace(tok)
	c.Source = tok
	if tok == "" {
		return usageError{usage: c.Name + " <connection id>"}
	}
	id, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", errInvalidID, tok)
	}
	c.ID = id
	return nil
}

// nextToken splits off the first whitespace-delimited token. rest keeps its
// inner spacing but loses the separator after the token.
func nextToken(s string) (tok, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
