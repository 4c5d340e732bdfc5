package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

// tagged writes one stderr line with a colored leading marker.
func tagged(color, marker, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, marker+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { tagged(ansiGreen, "✓", format, args...) }

func printError(format string, args ...any) { tagged(ansiRed, "✗", format, args...) }

func printWarning(format string, args ...any) { tagged(ansiYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { tagged(ansiCyan, "→", format, args...) }

// printStatus writes an indented label/value line with a bold label.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
