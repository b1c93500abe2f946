package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) Create(_ context.Context, a []string) error   { return f.record("create", a) }
func (f *fakeExec) Redeem(_ context.Context, a []string) error   { return f.record("redeem", a) }
func (f *fakeExec) Pair(_ context.Context, a []string) error     { return f.record("pair", a) }
func (f *fakeExec) Profiles(_ context.Context, a []string) error { return f.record("profiles", a) }
func (f *fakeExec) Use(_ context.Context, a []string) error      { return f.record("use", a) }
func (f *fakeExec) Forget(_ context.Context, a []string) error   { return f.record("forget", a) }
func (f *fakeExec) Send(_ context.Context, a []string) error     { return f.record("send", a) }
func (f *fakeExec) Poll(_ context.Context, a []string) error     { return f.record("poll", a) }
func (f *fakeExec) Ack(_ context.Context, a []string) error      { return f.record("ack", a) }
func (f *fakeExec) Watch(_ context.Context, a []string) error    { return f.record("watch", a) }
func (f *fakeExec) Sessions(_ context.Context, a []string) error { return f.record("sessions", a) }
func (f *fakeExec) NewSession(_ context.Context, a []string) error {
	return f.record("session", a)
}
func (f *fakeExec) Upload(_ context.Context, a []string) error   { return f.record("upload", a) }
func (f *fakeExec) Manifest(_ context.Context, a []string) error { return f.record("manifest", a) }
func (f *fakeExec) Download(_ context.Context, a []string) error { return f.record("download", a) }
func (f *fakeExec) Fetch(_ context.Context, a []string) error    { return f.record("fetch", a) }
func (f *fakeExec) FileURL(_ context.Context, a []string) error  { return f.record("url", a) }
func (f *fakeExec) Finalize(_ context.Context, a []string) error { return f.record("finalize", a) }
func (f *fakeExec) DeleteSession(_ context.Context, a []string) error {
	return f.record("rmsession", a)
}

func TestRunREPL_Dispatch(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"create work",
		"redeem home 123456 my phone",
		"pair",
		"profiles",
		"use work",
		"",
		"send hello there",
		"poll all",
		"ack a b",
		"watch on",
		"sessions active",
		"session",
		"upload s1 /tmp/x.png screen",
		"manifest s1",
		"download s1 x.png",
		"fetch s1 x.png out/x.png",
		"url s1 x.png",
		"finalize s1 tok",
		"rmsession s1",
		"forget work",
		"foobar",
		"exit",
		"create never",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return " (status)" }, bufio.NewReader(strings.NewReader(input)), &out)

	assert.Equal(t, []string{
		"create", "redeem", "pair", "profiles", "use", "send", "poll", "ack", "watch",
		"sessions", "session", "upload", "manifest", "download", "fetch", "url", "finalize", "rmsession", "forget",
	}, exec.calls)
	assert.Equal(t, []string{"home", "123456", "my", "phone"}, exec.args[1])
	assert.Equal(t, []string{"hello", "there"}, exec.args[5])

	s := out.String()
	assert.Contains(t, s, "relay (status)> ")
	assert.Contains(t, s, "Channels:")
	assert.Contains(t, s, "Unknown command: foobar")
	assert.Contains(t, s, "Bye!")
}

func TestRunREPL_ErrorsAndEOF(t *testing.T) {
	exec := &fakeExec{err: errors.New("boom")}
	var out bytes.Buffer

	// last line without newline still runs, then EOF ends the loop
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("poll")), &out)

	assert.Equal(t, []string{"poll"}, exec.calls)
	assert.Contains(t, out.String(), "error: boom")
}

func TestRunREPL_UsageErrorPrintedPlain(t *testing.T) {
	exec := &fakeExec{err: usageError("use <name>")}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("use\nquit\n")), &out)

	assert.Contains(t, out.String(), "usage: use <name>\n")
	assert.NotContains(t, out.String(), "error:")
}
