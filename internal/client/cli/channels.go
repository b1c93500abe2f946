package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/client/relay"
	"github.com/dmitrijs2005/dropbox/internal/common"
)

const timeLayout = "2006-01-02 15:04:05"

func (a *App) Create(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return usageError("create [name]")
	}
	var name string
	if len(args) == 1 {
		name = args[0]
	} else {
		var err error
		if name, err = GetSimpleText(a.reader, "Profile name", a.out); err != nil {
			return err
		}
	}
	p, err := a.channels.Create(ctx, name, a.config.ServerURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Channel %s created, profile %q is active\n", p.ChannelID, p.Name)
	return nil
}

func (a *App) Redeem(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("redeem <name> <code> [label]")
	}

	pass, err := GetPassword(a.out, "Pairing passphrase (empty if none)")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	p, err := a.channels.Redeem(ctx, args[0], a.config.ServerURL, args[1], strings.Join(args[2:], " "), string(pass))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Joined channel %s as profile %q\n", p.ChannelID, p.Name)
	return nil
}

func (a *App) Pair(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return usageError("pair")
	}
	p, err := a.channels.Active(ctx)
	if err != nil {
		return err
	}

	pass, err := GetPassword(a.out, "Pairing passphrase (empty for none)")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	code, err := a.channels.PairingCode(ctx, p, string(pass))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pairing code: %s (expires %s)\n", code.Code, code.ExpiresAt.Local().Format(timeLayout))
	return nil
}

func (a *App) Profiles(ctx context.Context, args []string) error {
	list, err := a.channels.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No profiles, use 'create' or 'redeem'")
		return nil
	}

	activeName := ""
	if p, err := a.channels.Active(ctx); err == nil {
		activeName = p.Name
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tCHANNEL\tSERVER\tLABEL")
	for _, p := range list {
		mark := ""
		if p.Name == activeName {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, p.Name, p.ChannelID, p.ServerURL, p.Label)
	}
	return w.Flush()
}

func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("use <name>")
	}
	return a.channels.Use(ctx, args[0])
}

func (a *App) Forget(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("forget <name>")
	}
	if err := a.channels.Forget(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Profile %q removed\n", args[0])
	return nil
}

// payload sends valid JSON as is and wraps anything else as {"text": ...}.
func payload(text string) any {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	return map[string]string{"text": text}
}

func (a *App) Send(ctx context.Context, args []string) error {
	p, err := a.channels.Active(ctx)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if text == "" {
		if text, err = GetMultiline(a.reader, "Message", a.out); err != nil {
			return err
		}
	}
	if text == "" {
		return usageError("send [text]")
	}

	sent, err := a.channels.Send(ctx, p, payload(text), "")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent %s\n", sent.ID)
	return nil
}

func (a *App) printMessage(m relay.Message) {
	body := string(m.Data)
	var t struct {
		Text *string `json:"text"`
	}
	if json.Unmarshal(m.Data, &t) == nil && t.Text != nil {
		body = *t.Text
	}
	fmt.Fprintf(a.out, "[%s] %s (%s): %s\n", m.CreatedAt.Local().Format(timeLayout), m.Sender, m.ID, body)
}

func (a *App) Poll(ctx context.Context, args []string) error {
	all := len(args) == 1 && args[0] == "all"
	if len(args) > 1 || (len(args) == 1 && !all) {
		return usageError("poll [all]")
	}

	p, err := a.channels.Active(ctx)
	if err != nil {
		return err
	}
	msgs, err := a.channels.Poll(ctx, p, all)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No new messages")
	}
	for _, m := range msgs {
		a.printMessage(m)
	}
	return nil
}

func (a *App) Ack(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("ack <id>...")
	}
	p, err := a.channels.Active(ctx)
	if err != nil {
		return err
	}
	for _, id := range args {
		if err := a.channels.Ack(ctx, p, id); err != nil {
			return fmt.Errorf("ack %s: %w", id, err)
		}
	}
	fmt.Fprintf(a.out, "Deleted %d message(s)\n", len(args))
	return nil
}

func (a *App) Watch(ctx context.Context, args []string) error {
	on := !a.watching()
	if len(args) == 1 {
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return usageError("watch [on|off]")
		}
	} else if len(args) > 1 {
		return usageError("watch [on|off]")
	}

	if on {
		a.startWatcher(ctx, a.pollInterval())
		fmt.Fprintf(a.out, "Watching every %s\n", a.pollInterval())
	} else {
		a.stopWatcher()
		fmt.Fprintln(a.out, "Watch stopped")
	}
	return nil
}

func (a *App) pollInterval() time.Duration {
	if a.config.PollInterval <= 0 {
		return 5 * time.Second
	}
	return a.config.PollInterval
}
