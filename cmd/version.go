package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Version is set at build time via ldflags.
var Version = "v0.1.0"

// getConfigDir returns ~/.config/squeeze, or "" when there is no home dir.
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "squeeze")
}

// PrintVersion prints the current version.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "squeeze %s\n", Version)
	fmt.Fprintf(w, "Runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
