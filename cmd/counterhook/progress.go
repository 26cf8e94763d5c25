package main

import (
	"fmt"
	"io"
	"os"
)

var (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func init() {
	// Not a terminal, disable colors
	if stat, err := os.Stdout.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		colorGreen = ""
		colorYellow = ""
		colorReset = ""
	}
}

func printOK(w io.Writer, msg string) {
	fmt.Fprintf(w, "%-60s%s[OK]%s\n", msg, colorGreen, colorReset)
}

func printWarn(w io.Writer, msg string) {
	fmt.Fprintf(w, "%-60s%s[WARN]%s\n", msg, colorYellow, colorReset)
}
