package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
	"github.com/dmitrijs2005/dropbox/internal/client/relay"
	"github.com/dmitrijs2005/dropbox/internal/filex"
	"github.com/dmitrijs2005/dropbox/internal/netx"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

func (a *App) capture(ctx context.Context) (*relay.CaptureClient, *models.Profile, error) {
	p, err := a.channels.Active(ctx)
	if err != nil {
		return nil, nil, err
	}
	cc, err := a.channels.Capture(p)
	if err != nil {
		return nil, nil, err
	}
	return cc, p, nil
}

func (a *App) Sessions(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return usageError("sessions [active|completed]")
	}
	status := ""
	if len(args) == 1 {
		status = args[0]
	}

	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	list, err := cc.ListSessions(ctx, status)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No sessions")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tFILES\tSTARTED\tENDED")
	for _, s := range list {
		ended := "-"
		if s.EndedAt != nil {
			ended = *s.EndedAt
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Status, s.FileCount, s.StartedAt, ended)
	}
	return w.Flush()
}

func (a *App) NewSession(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return usageError("session")
	}
	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	s, err := cc.CreateSession(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session %s started\nFinalize token: %s\n", s.ID, s.FinalizeToken)
	return nil
}

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageError("upload <session> <path> [source]")
	}
	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	opts := relay.UploadOptions{}
	if st, err := f.Stat(); err == nil {
		opts.StartedAt = timex.FormatWire(st.ModTime())
	}
	if len(args) == 3 {
		opts.Source = args[2]
	}

	up, err := cc.Upload(ctx, args[0], filepath.Base(args[1]), f, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s (%d bytes)\n", up.Name, up.Size)
	return nil
}

func (a *App) Manifest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("manifest <session>")
	}
	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	m, err := cc.Manifest(ctx, args[0])
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *App) Download(ctx context.Context, args []string) error {
	return a.download(ctx, args, "download", func(cc *relay.CaptureClient, session, name string) (io.ReadCloser, error) {
		body, _, err := cc.File(ctx, session, name)
		return body, err
	})
}

// Fetch downloads through a presigned link, straight from the object store.
func (a *App) Fetch(ctx context.Context, args []string) error {
	return a.download(ctx, args, "fetch", func(cc *relay.CaptureClient, session, name string) (io.ReadCloser, error) {
		u, err := cc.FileURL(ctx, session, name)
		if err != nil {
			return nil, err
		}
		return netx.FetchPresigned(ctx, nil, u)
	})
}

type opener func(cc *relay.CaptureClient, session, name string) (io.ReadCloser, error)

func (a *App) download(ctx context.Context, args []string, cmd string, open opener) error {
	if len(args) < 2 || len(args) > 3 {
		return usageError(cmd + " <session> <name> [dest]")
	}
	dest := args[1]
	if len(args) == 3 {
		dest = args[2]
	}

	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	body, err := open(cc, args[0], args[1])
	if err != nil {
		return err
	}
	defer body.Close()

	if err := filex.EnsureParentDir(dest); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%d bytes)\n", dest, n)
	return nil
}

func (a *App) FileURL(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("url <session> <name>")
	}
	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	u, err := cc.FileURL(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, u)
	return nil
}

// Finalize closes a session as the channel owner, or with a finalize token
// when one is given.
func (a *App) Finalize(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("finalize <session> [token]")
	}
	cc, p, err := a.capture(ctx)
	if err != nil {
		return err
	}

	var endedAt string
	if len(args) == 2 {
		t, err := relay.FinalizeWithToken(ctx, p.ServerURL, args[0], args[1], a.channels.Options()...)
		if err != nil {
			return err
		}
		endedAt = timex.FormatWire(t)
	} else {
		t, err := cc.Finalize(ctx, args[0])
		if err != nil {
			return err
		}
		endedAt = timex.FormatWire(t)
	}
	fmt.Fprintf(a.out, "Session %s finalized at %s\n", args[0], endedAt)
	return nil
}

func (a *App) DeleteSession(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("rmsession <session>")
	}
	cc, _, err := a.capture(ctx)
	if err != nil {
		return err
	}
	if err := cc.DeleteSession(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session %s deleted\n", args[0])
	return nil
}
