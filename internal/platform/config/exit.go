package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Replaced in tests.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf reports a startup failure on stderr, one line, and ends the process
// with status 1. Mains call it before any server is running.
func Exitf(format string, args ...any) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(stderr, message)
	exit(1)
}
