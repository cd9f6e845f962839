package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exword "github.com/alparslanahmed/go-exword"
	"github.com/alparslanahmed/go-exword/internal/devsim"
)

func simOpener(dev *devsim.Device) opener {
	return func(mode exword.Mode, locale exword.Locale) (*exword.Session, error) {
		return exword.OpenTransport(nopCloser{dev}, exword.WithMode(mode), exword.WithLocale(locale))
	}
}

func newTestShell(t *testing.T, dev *devsim.Device) (*shell, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	log, _ := logtest.NewNullLogger()
	sh := newShell(out, simOpener(dev), log, t.TempDir(), 0)
	t.Cleanup(sh.close)
	return sh, out
}

func debugLogger() (*logrus.Logger, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func TestParseSetPath(t *testing.T) {
	tests := []struct {
		in   string
		root exword.Root
		path string
		ok   bool
	}{
		{"sd://dict", exword.RootSD, "dict", true},
		{"mem:///", exword.RootInternal, "/", true},
		{"mem://", exword.RootInternal, "", true},
		{"usb://x", exword.RootNone, "", false},
		{"dict", exword.RootNone, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			root, path, ok := parseSetPath(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestShellRequiresConnection(t *testing.T) {
	sh, out := newTestShell(t, devsim.New())

	assert.False(t, sh.execute("list"))
	assert.False(t, sh.execute("bogus"))
	assert.False(t, sh.execute(""))
	assert.Equal(t, "Not connected\nInvalid command\n", out.String())
}

func TestShellConnect(t *testing.T) {
	dev := devsim.New()
	sh, out := newTestShell(t, dev)

	sh.execute("connect text de")
	assert.Equal(t, "connecting to device...done\n", out.String())
	require.NotNil(t, sh.s)
	assert.Equal(t, exword.ModeText, sh.s.Mode())
	assert.Equal(t, exword.LocaleDE, sh.s.Locale())
	assert.Equal(t, devsim.InternalRoot, dev.Cwd(), "connect selects internal memory")

	out.Reset()
	sh.execute("connect")
	assert.Equal(t, "Already connected\n", out.String())

	out.Reset()
	sh.execute("disconnect")
	assert.Equal(t, "disconnecting...done\n", out.String())
	assert.Nil(t, sh.s)
	assert.False(t, dev.Connected())
}

func TestShellConnectArguments(t *testing.T) {
	sh, out := newTestShell(t, devsim.New())

	sh.execute("connect floppy")
	sh.execute("connect library xx")
	assert.Equal(t, "Unknown 'type': floppy\nUnknown 'locale': xx\n", out.String())
	assert.Nil(t, sh.s)
}

func TestShellConnectFailures(t *testing.T) {
	out := &bytes.Buffer{}
	log, _ := logtest.NewNullLogger()
	sh := newShell(out, func(exword.Mode, exword.Locale) (*exword.Session, error) {
		return nil, errors.New("no usb")
	}, log, "", 0)
	sh.execute("connect")
	assert.Equal(t, "connecting to device...device not found\n", out.String())

	dev := devsim.New()
	dev.FailOn("connect", 0x53)
	sh, out = newTestShell(t, dev)
	sh.execute("connect")
	assert.Equal(t, "connecting to device...connect failed\n", out.String())
	assert.Nil(t, sh.s)
}

func TestShellListAndCapacity(t *testing.T) {
	dev := devsim.New(devsim.WithInternal(4096))
	dev.Mkdir(devsim.InternalRoot + `\dict`)
	dev.PutFile(devsim.InternalRoot+`\NOTE.TXT`, make([]byte, 37))
	sh, out := newTestShell(t, dev)
	sh.execute("connect")

	out.Reset()
	sh.execute("list")
	assert.Equal(t, "NOTE.TXT\n<dict>\n", out.String())

	out.Reset()
	sh.execute("capacity")
	assert.Equal(t, "Capacity: 4096 / 37\n", out.String())

	out.Reset()
	sh.execute("setpath mem://dict")
	sh.execute("list")
	assert.Empty(t, out.String())
	assert.Equal(t, devsim.InternalRoot+`\dict`, dev.Cwd())

	out.Reset()
	sh.execute("setpath sd://")
	sh.execute("setpath floppy")
	assert.Equal(t, "Not Found\nInvalid argument. Format (sd|mem)://<path>\n", out.String())
}

func TestShellFileCommands(t *testing.T) {
	dev := devsim.New()
	sh, out := newTestShell(t, dev)
	require.NoError(t, os.WriteFile(filepath.Join(sh.dir, "NOTE.TXT"), []byte("hello"), 0o644))
	sh.execute("connect")

	out.Reset()
	sh.execute("send NOTE.TXT")
	assert.Equal(t, "uploading...OK, Success\n", out.String())
	stored, ok := dev.File(devsim.InternalRoot + `\NOTE.TXT`)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), stored)

	require.NoError(t, os.Remove(filepath.Join(sh.dir, "NOTE.TXT")))
	out.Reset()
	sh.execute("get NOTE.TXT")
	assert.Equal(t, "downloading...OK, Success\n", out.String())
	got, err := os.ReadFile(filepath.Join(sh.dir, "NOTE.TXT"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	out.Reset()
	sh.execute("delete NOTE.TXT")
	sh.execute("delete NOTE.TXT")
	sh.execute("delete")
	assert.Equal(t, "deleting...OK, Success\ndeleting...Not Found\nRequires filename\n", out.String())
}

func TestShellModelAndDebug(t *testing.T) {
	sh, out := newTestShell(t, devsim.New(devsim.WithModel("XD-N4800", "JA1")))
	sh.execute("connect")

	out.Reset()
	sh.execute("model")
	assert.Equal(t, "Model: XD-N4800\nSub: JA1\n", out.String())

	out.Reset()
	sh.execute("debug 3")
	sh.execute("debug 9")
	sh.execute("debug")
	assert.Equal(t, "Value should be between 0 and 5\nRequires debug level\n", out.String())
	assert.Equal(t, 3, sh.s.Debug())
}

func TestLoopStopsOnExit(t *testing.T) {
	dev := devsim.New()
	sh, out := newTestShell(t, dev)

	input := strings.NewReader("connect\nhelp\nexit\nlist\n")
	require.NoError(t, loop(sh, scanLines(input)))

	assert.True(t, strings.HasPrefix(out.String(), "exword interactive mode\n"))
	assert.Contains(t, out.String(), "setpath <sd|mem>://<path>")
	assert.NotContains(t, out.String(), "Not connected")
	assert.False(t, dev.Connected(), "loop closes the session")
}

func TestRunBatch(t *testing.T) {
	dev := devsim.New()
	dev.PutFile(devsim.InternalRoot+`\A.TXT`, []byte("a"))

	out := &bytes.Buffer{}
	log, hook := debugLogger()
	code := runBatch(out, log, simOpener(dev), "list", "")
	assert.Equal(t, 0, code)
	assert.Equal(t, "A.TXT\nOK, Success\n", out.String())
	assert.False(t, dev.Connected())

	out.Reset()
	code = runBatch(out, log, simOpener(dev), "send", "")
	assert.Equal(t, 1, code)
	assert.Equal(t, "Invalid Argument\n", out.String())
	assert.Empty(t, hook.AllEntries())

	out.Reset()
	dev.FailOn("disconnect", 0x50)
	code = runBatch(out, log, simOpener(dev), "list", "")
	assert.Equal(t, 0, code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "disconnect failed")
}

func TestShellLogsFailedDisconnect(t *testing.T) {
	dev := devsim.New()
	log, hook := debugLogger()
	sh := newShell(&bytes.Buffer{}, simOpener(dev), log, "", 0)
	sh.execute("connect")
	require.NotNil(t, sh.s)
	id := sh.s.ID().String()

	dev.FailOn("disconnect", 0x50)
	sh.execute("disconnect")
	assert.Nil(t, sh.s)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "disconnect failed")
	assert.Equal(t, id, hook.LastEntry().Data["session"])
}

func TestFileArgLocalPath(t *testing.T) {
	sh := newShell(&bytes.Buffer{}, nil, logrus.New(), "", 0)
	name, local, ok := sh.fileArg([]string{"sub/NOTE.TXT"})
	require.True(t, ok)
	assert.Equal(t, "NOTE.TXT", name)
	assert.Equal(t, "sub/NOTE.TXT", local, "empty dir keeps the path relative to the working directory")

	sh.dir = "/tmp/exword"
	_, local, _ = sh.fileArg([]string{"NOTE.TXT"})
	assert.Equal(t, filepath.Join("/tmp/exword", "NOTE.TXT"), local)
	_, local, _ = sh.fileArg([]string{"/abs/NOTE.TXT"})
	assert.Equal(t, "/abs/NOTE.TXT", local)
}
