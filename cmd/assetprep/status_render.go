package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// reporter prints aligned "label: [KIND] message" lines, coloured when the
// writer is a terminal.
type reporter struct {
	out      io.Writer
	colorize bool
}

func newReporter(out io.Writer) reporter {
	return reporter{out: out, colorize: shouldColorize(out)}
}

func (r reporter) line(label string, kind statusKind, format string, args ...any) {
	fmt.Fprintln(r.out, renderStatusLine(label, kind, fmt.Sprintf(format, args...), r.colorize))
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusKinds[kind]
	line := fmt.Sprintf("  %-12s [%s]", label+":", style.label)
	if message != "" {
		line += " " + message
	}
	if colorize && style.color != "" {
		return style.color + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
