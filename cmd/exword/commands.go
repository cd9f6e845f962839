package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	exword "github.com/alparslanahmed/go-exword"
)

// opener opens a session with the given transfer mode and locale.
type opener func(mode exword.Mode, locale exword.Locale) (*exword.Session, error)

// shell executes interactive commands against one session at a time.
type shell struct {
	out   io.Writer
	open  opener
	log   logrus.FieldLogger
	s     *exword.Session
	debug int

	// dir is where get stores and send reads relative local files. Empty
	// means the working directory.
	dir string
}

func newShell(out io.Writer, open opener, log logrus.FieldLogger, dir string, debug int) *shell {
	return &shell{out: out, open: open, log: log, dir: dir, debug: debug}
}

// hangUp disconnects s. A failure is only logged; the caller closes s
// either way.
func hangUp(log logrus.FieldLogger, s *exword.Session) {
	if err := s.Disconnect(); err != nil {
		log.WithField("session", s.ID().String()).Debugf("disconnect failed: %v", err)
	}
}

var modes = map[string]exword.Mode{
	"library": exword.ModeLibrary,
	"text":    exword.ModeText,
	"cd":      exword.ModeCD,
}

var locales = map[string]exword.Locale{
	"ja": exword.LocaleJA,
	"kr": exword.LocaleKR,
	"cn": exword.LocaleCN,
	"de": exword.LocaleDE,
	"es": exword.LocaleES,
	"fr": exword.LocaleFR,
	"ru": exword.LocaleRU,
}

const helpText = `Commands:
connect [type] [locale]   - connect to attached dictionary
disconnect                - disconnect to dictionary
model                     - print model
setpath <sd|mem>://<path> - switch storage medium
list                      - list files
capacity                  - display medium capacity
format                    - format SD card
delete  <filename>        - delete filename
send    <filename>        - upload filename
get     <filename>        - download filename
debug   <number>          - set debug level (0-5)
exit                      - leave interactive mode
`

// parseSetPath splits "sd://dict" or "mem:///" into a root and a path.
func parseSetPath(arg string) (exword.Root, string, bool) {
	switch {
	case strings.HasPrefix(arg, "sd://"):
		return exword.RootSD, strings.TrimPrefix(arg, "sd://"), true
	case strings.HasPrefix(arg, "mem://"):
		return exword.RootInternal, strings.TrimPrefix(arg, "mem://"), true
	default:
		return exword.RootNone, "", false
	}
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// result prints the response string for err.
func (sh *shell) result(err error) {
	sh.printf("%s\n", exword.CodeOf(err).String())
}

// execute runs one command line and reports whether the shell should exit.
func (sh *shell) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		sh.printf("%s", helpText)
		return false
	case "exit", "quit":
		return true
	case "debug":
		sh.setDebug(args)
		return false
	case "connect":
		sh.connect(args)
		return false
	}

	if sh.s == nil || sh.s.State() < exword.StateConnected {
		if _, ok := sessionCommands[cmd]; ok {
			sh.printf("Not connected\n")
		} else {
			sh.printf("Invalid command\n")
		}
		return false
	}

	run, ok := sessionCommands[cmd]
	if !ok {
		sh.printf("Invalid command\n")
		return false
	}
	run(sh, args)
	return false
}

var sessionCommands = map[string]func(*shell, []string){
	"disconnect": (*shell).disconnect,
	"model":      (*shell).model,
	"setpath":    (*shell).setPath,
	"list":       (*shell).list,
	"capacity":   (*shell).capacity,
	"format":     (*shell).format,
	"delete":     (*shell).deleteFile,
	"send":       (*shell).sendFile,
	"get":        (*shell).getFile,
}

func (sh *shell) setDebug(args []string) {
	if len(args) == 0 {
		sh.printf("Requires debug level\n")
		return
	}
	level, err := strconv.Atoi(args[0])
	if err != nil || level < 0 || level > 5 {
		sh.printf("Value should be between 0 and 5\n")
		return
	}
	sh.debug = level
	if sh.s != nil {
		sh.s.SetDebug(level)
	}
}

func (sh *shell) connect(args []string) {
	if sh.s != nil && sh.s.State() >= exword.StateConnected {
		sh.printf("Already connected\n")
		return
	}

	mode, locale := exword.ModeLibrary, exword.LocaleJA
	if len(args) > 0 {
		m, ok := modes[args[0]]
		if !ok {
			sh.printf("Unknown 'type': %s\n", args[0])
			return
		}
		mode = m
	}
	if len(args) > 1 {
		l, ok := locales[args[1]]
		if !ok {
			sh.printf("Unknown 'locale': %s\n", args[1])
			return
		}
		locale = l
	}

	sh.printf("connecting to device...")
	s, err := sh.open(mode, locale)
	if err != nil {
		sh.printf("device not found\n")
		return
	}
	s.SetDebug(sh.debug)
	if err := s.Connect(); err != nil {
		s.Close()
		sh.printf("connect failed\n")
		return
	}
	if err := s.SetPath(exword.RootInternal, "/", 0); err != nil {
		hangUp(sh.log, s)
		s.Close()
		sh.printf("connect failed\n")
		return
	}
	sh.s = s
	sh.printf("done\n")
}

// close disconnects and releases the current session, if any.
func (sh *shell) close() {
	if sh.s == nil {
		return
	}
	if sh.s.State() >= exword.StateConnected {
		hangUp(sh.log, sh.s)
	}
	sh.s.Close()
	sh.s = nil
}

func (sh *shell) disconnect([]string) {
	sh.printf("disconnecting...")
	sh.close()
	sh.printf("done\n")
}

func (sh *shell) model([]string) {
	m, err := sh.s.Model()
	if err != nil {
		sh.result(err)
		return
	}
	sh.printf("Model: %s\nSub: %s\n", m.Model, m.SubModel)
}

func (sh *shell) setPath(args []string) {
	if len(args) == 0 {
		sh.printf("Invalid argument. Format (sd|mem)://<path>\n")
		return
	}
	root, path, ok := parseSetPath(args[0])
	if !ok {
		sh.printf("Invalid argument. Format (sd|mem)://<path>\n")
		return
	}
	if err := sh.s.SetPath(root, path, 0); err != nil {
		sh.result(err)
	}
}

func (sh *shell) list([]string) {
	if err := listFiles(sh.out, sh.s); err != nil {
		sh.result(err)
	}
}

func (sh *shell) capacity([]string) {
	if err := showCapacity(sh.out, sh.s); err != nil {
		sh.result(err)
	}
}

func (sh *shell) format([]string) {
	sh.printf("formatting...")
	sh.result(sh.s.SDFormat())
}

// fileArg returns the device name and local path for a file command.
func (sh *shell) fileArg(args []string) (string, string, bool) {
	if len(args) == 0 {
		sh.printf("Requires filename\n")
		return "", "", false
	}
	local := args[0]
	if !filepath.IsAbs(local) && sh.dir != "" {
		local = filepath.Join(sh.dir, local)
	}
	return filepath.Base(args[0]), local, true
}

func (sh *shell) deleteFile(args []string) {
	name, _, ok := sh.fileArg(args)
	if !ok {
		return
	}
	sh.printf("deleting...")
	sh.result(sh.s.RemoveFile(name))
}

func (sh *shell) sendFile(args []string) {
	_, local, ok := sh.fileArg(args)
	if !ok {
		return
	}
	sh.printf("uploading...")
	sh.result(sh.s.UploadFile(local))
}

func (sh *shell) getFile(args []string) {
	name, local, ok := sh.fileArg(args)
	if !ok {
		return
	}
	sh.printf("downloading...")
	sh.result(sh.s.DownloadFile(name, local))
}
