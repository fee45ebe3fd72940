package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// assumeYes skips confirmation prompts (set by --yes).
var assumeYes bool

// stdinIsTerminal reports whether a human can answer prompts.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// mustConfirm asks before a destructive step and exits with ExitAborted
// unless the user agrees. Without a terminal, --yes is required.
func mustConfirm(format string, args ...interface{}) {
	if assumeYes {
		return
	}
	if !stdinIsTerminal() {
		exitWithError(ExitAborted, "refusing to modify the library without confirmation; re-run with --yes")
	}
	ok, err := confirm(os.Stdin, os.Stderr, fmt.Sprintf(format, args...))
	if err != nil {
		exitWithError(ExitError, "reading answer: %v", err)
	}
	if !ok {
		exitWithError(ExitAborted, "aborted")
	}
}

// confirm writes prompt to out and reads a yes/no answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return parseAnswer(line), nil
}

func parseAnswer(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
