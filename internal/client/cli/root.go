package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus(ctx context.Context) string {
	s := ""
	if p, err := a.channels.Active(ctx); err == nil {
		s = p.Name
	}
	if a.watching() {
		s += " watching"
	}
	if s != "" {
		s = fmt.Sprintf(" (%s)", s)
	}
	return s
}

// Root runs the REPL on the app's input until the user leaves.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintf(a.out, "Relay CLI for %s (type 'help' for commands)\n", a.config.ServerURL)
	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, a.reader, a.out)
}
