package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. Each command
// gets the words after its name.
type execIface interface {
	Create(ctx context.Context, args []string) error
	Redeem(ctx context.Context, args []string) error
	Pair(ctx context.Context, args []string) error
	Profiles(ctx context.Context, args []string) error
	Use(ctx context.Context, args []string) error
	Forget(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	Poll(ctx context.Context, args []string) error
	Ack(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Sessions(ctx context.Context, args []string) error
	NewSession(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Manifest(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	FileURL(ctx context.Context, args []string) error
	Finalize(ctx context.Context, args []string) error
	DeleteSession(ctx context.Context, args []string) error
}

const helpText = `Channels:
  create [name]                      create a channel and save it as a profile
  redeem <name> <code> [label]       join a channel with a pairing code
  pair                               issue a pairing code for the active channel
  profiles                           list saved profiles (* = active)
  use <name>                         switch the active profile
  forget <name>                      delete a profile locally
Mailbox:
  send [text]                        send text or JSON (multi-line prompt without args)
  poll [all]                         show new messages (all: ignore the cursor)
  ack <id>...                        delete messages from the mailbox
  watch [on|off]                     poll in the background
Capture:
  sessions [active|completed]        list capture sessions
  session                            open a capture session
  upload <session> <path> [source]   upload a file
  manifest <session>                 show the session manifest
  download <session> <name> [dest]   save a file
  fetch <session> <name> [dest]      save a file via its presigned link
  url <session> <name>               presigned download link
  finalize <session> [token]         close a session
  rmsession <session>                delete a session and its files
  exit | quit`

// usageError is returned by commands called with the wrong arguments.
type usageError string

func (u usageError) Error() string {
	return "usage: " + string(u)
}

// runREPL reads commands from in until EOF or exit/quit. Command errors are
// printed and never stop the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "relay%s> ", statusFn())

		line, readErr := in.ReadString('\n')
		if readErr != nil && line == "" {
			fmt.Fprintln(out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			fmt.Fprintln(out, helpText)
		case "create":
			err = a.Create(ctx, args)
		case "redeem":
			err = a.Redeem(ctx, args)
		case "pair":
			err = a.Pair(ctx, args)
		case "profiles":
			err = a.Profiles(ctx, args)
		case "use":
			err = a.Use(ctx, args)
		case "forget":
			err = a.Forget(ctx, args)
		case "send":
			err = a.Send(ctx, args)
		case "poll":
			err = a.Poll(ctx, args)
		case "ack":
			err = a.Ack(ctx, args)
		case "watch":
			err = a.Watch(ctx, args)
		case "sessions":
			err = a.Sessions(ctx, args)
		case "session":
			err = a.NewSession(ctx, args)
		case "upload":
			err = a.Upload(ctx, args)
		case "manifest":
			err = a.Manifest(ctx, args)
		case "download":
			err = a.Download(ctx, args)
		case "fetch":
			err = a.Fetch(ctx, args)
		case "url":
			err = a.FileURL(ctx, args)
		case "finalize":
			err = a.Finalize(ctx, args)
		case "rmsession":
			err = a.DeleteSession(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if err != nil {
			var ue usageError
			if errors.As(err, &ue) {
				fmt.Fprintln(out, err)
			} else {
				fmt.Fprintln(out, "error:", err)
			}
		}
		if readErr != nil {
			return
		}
	}
}
