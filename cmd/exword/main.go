// Command exword transfers files to and from Casio EX-word dictionaries.
//
//	exword -list
//	exword -sd /dict -send -file NOTE.TXT
//	exword -interactive
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	exword "github.com/alparslanahmed/go-exword"
	"github.com/alparslanahmed/go-exword/internal/devsim"
	"github.com/alparslanahmed/go-exword/usb"
)

var (
	sdPath      = flag.String("sd", "", "access external sd card at `path`")
	memPath     = flag.String("internal", "", "access internal memory at `path` (default)")
	doList      = flag.Bool("list", false, "list files on device")
	doSend      = flag.Bool("send", false, "send file to device")
	doGet       = flag.Bool("get", false, "get file from device")
	doDelete    = flag.Bool("delete", false, "delete file from device")
	doModel     = flag.Bool("model", false, "get device model")
	doCapacity  = flag.Bool("capacity", false, "get device capacity")
	doFormat    = flag.Bool("format", false, "format SD card")
	interactive = flag.Bool("interactive", false, "interactive mode")
	fileName    = flag.String("file", "", "file name to transfer/delete")
	localDir    = flag.String("dir", "", "local `directory` for interactive send/get (default current)")
	debugLevel  = flag.Int("debug", 0, "debug level (0..5)")
	simulate    = flag.Bool("simulate", false, "use an in-memory device instead of USB")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.TraceLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if *debugLevel < 0 || *debugLevel > 5 {
		usage("debug level must be between 0 and 5")
	}

	open := newOpener(logger, *simulate)

	if *interactive {
		if err := runInteractive(open, logger); err != nil {
			fmt.Fprintf(os.Stderr, "exword: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cmd, err := selectedCommand()
	if err != nil {
		usage(err.Error())
	}
	if isSet("sd") && isSet("internal") {
		usage("-sd and -internal options mutually exclusive")
	}

	os.Exit(runBatch(os.Stdout, logger, open, cmd, *fileName))
}

func usage(msg string) {
	flag.Usage()
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func selectedCommand() (string, error) {
	selected := map[string]bool{
		"list":     *doList,
		"send":     *doSend,
		"get":      *doGet,
		"delete":   *doDelete,
		"model":    *doModel,
		"capacity": *doCapacity,
		"format":   *doFormat,
	}
	cmd := ""
	for name, on := range selected {
		if !on {
			continue
		}
		if cmd != "" {
			return "", errors.New("more than one command given")
		}
		cmd = name
	}
	if cmd == "" {
		return "", errors.New("no command given")
	}
	return cmd, nil
}

// nopCloser keeps the simulated device alive across sessions.
type nopCloser struct {
	*devsim.Device
}

func (nopCloser) Close() error { return nil }

// newOpener returns a function that opens USB or simulator sessions.
func newOpener(logger *logrus.Logger, simulated bool) opener {
	var sim *devsim.Device
	if simulated {
		simOpts := []devsim.Option{devsim.WithCard(256 << 20)}
		if *debugLevel >= 2 {
			simOpts = append(simOpts, devsim.WithLogger(logger))
		}
		sim = devsim.New(simOpts...)
	}

	return func(mode exword.Mode, locale exword.Locale) (*exword.Session, error) {
		opts := []exword.Option{
			exword.WithMode(mode),
			exword.WithLocale(locale),
			exword.WithLogger(logger),
			exword.WithDebug(*debugLevel),
		}
		if term.IsTerminal(int(os.Stderr.Fd())) {
			opts = append(opts, exword.WithProgress(progressTo(os.Stderr), progressTo(os.Stderr)))
		}
		if sim != nil {
			return exword.OpenTransport(nopCloser{sim}, opts...)
		}
		return exword.Open(usb.Enumerator{Logger: logger}, opts...)
	}
}

func progressTo(w io.Writer) exword.ProgressFunc {
	return func(p exword.Progress) error {
		fmt.Fprintf(w, "\r%s: %.1f%%", p.Name, p.Percent())
		if p.Done() {
			fmt.Fprintln(w)
		}
		return nil
	}
}

// runBatch connects, selects the path, runs one command, disconnects and
// prints the response string.
func runBatch(out io.Writer, log logrus.FieldLogger, open opener, cmd, file string) int {
	s, err := open(exword.ModeLibrary, exword.LocaleJA)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open device or no device found")
		return 1
	}
	defer s.Close()

	err = s.Connect()
	if err == nil {
		switch {
		case isSet("sd"):
			err = s.SetPath(exword.RootSD, *sdPath, 0)
		case isSet("internal"):
			err = s.SetPath(exword.RootInternal, *memPath, 0)
		default:
			err = s.SetPath(exword.RootInternal, `\`, 0)
		}
	}
	if err == nil {
		err = batchCommand(out, s, cmd, file)
	}
	if s.State() >= exword.StateConnected {
		hangUp(log, s)
	}

	fmt.Fprintln(out, exword.CodeOf(err).String())
	if err != nil {
		return 1
	}
	return 0
}

func batchCommand(out io.Writer, s *exword.Session, cmd, file string) error {
	switch cmd {
	case "list":
		return listFiles(out, s)
	case "model":
		m, err := s.Model()
		if err == nil {
			fmt.Fprintf(out, "Model: %s\nSub: %s\n", m.Model, m.SubModel)
		}
		return err
	case "capacity":
		return showCapacity(out, s)
	case "format":
		return s.SDFormat()
	}

	if file == "" {
		return &exword.Error{Op: cmd, Code: exword.CodeInvalidArgument, Err: fmt.Errorf("-%s requires -file", cmd)}
	}
	switch cmd {
	case "send":
		return s.UploadFile(file)
	case "get":
		return s.DownloadFile(filepath.Base(file), file)
	case "delete":
		return s.RemoveFile(filepath.Base(file))
	default:
		return &exword.Error{Op: cmd, Code: exword.CodeInvalidArgument}
	}
}

// listFiles prints one entry per line, directories in angle brackets.
func listFiles(out io.Writer, s *exword.Session) error {
	list, err := s.List()
	if err != nil {
		return err
	}
	defer list.Release()
	for _, e := range list.Entries {
		if e.IsDir() {
			fmt.Fprintf(out, "<%s>\n", e.Name)
		} else {
			fmt.Fprintf(out, "%s\n", e.Name)
		}
	}
	return nil
}

func showCapacity(out io.Writer, s *exword.Session) error {
	c, err := s.Capacity()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Capacity: %d / %d\n", c.Total, c.Used)
	return nil
}
