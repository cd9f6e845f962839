package main

import (
	"bufio"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const prompt = "exword> "

// runInteractive reads commands from stdin until exit or end of input. A
// terminal gets line editing and history; anything else is read line by
// line.
func runInteractive(open opener, logger *logrus.Logger) error {
	sh := newShell(os.Stdout, open, logger, *localDir, *debugLevel)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return loop(sh, scanLines(os.Stdin))
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, state)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, prompt)
	if w, h, err := term.GetSize(fd); err == nil {
		t.SetSize(w, h)
	}
	// Raw mode needs the terminal's \r\n translation for log lines too.
	logger.SetOutput(t)
	defer logger.SetOutput(os.Stderr)

	sh.out = t
	return loop(sh, t.ReadLine)
}

func scanLines(r io.Reader) func() (string, error) {
	sc := bufio.NewScanner(r)
	return func() (string, error) {
		if sc.Scan() {
			return sc.Text(), nil
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
}

// loop feeds lines to the shell and closes any open session on the way out.
func loop(sh *shell, readLine func() (string, error)) error {
	sh.printf("exword interactive mode\n")
	defer sh.close()

	for {
		line, err := readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if sh.execute(line) {
			return nil
		}
	}
}
