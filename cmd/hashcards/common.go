package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/conorfennell/hashcards/internal/collection"
	"github.com/conorfennell/hashcards/internal/storage"
)

// newFlagSet builds the flag set shared by every command: a --verbose switch
// and a usage line naming the optional DIRECTORY argument.
func newFlagSet(name, summary string, stderr io.Writer) (*pflag.FlagSet, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.BoolP("verbose", "v", false, "log debug output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hashcards %s [options] [DIRECTORY]\n\n%s\n\nOptions:\n", name, summary)
		fs.PrintDefaults()
	}
	return fs, verbose
}

// parseArgs parses args and returns the exit code to stop with, or -1 to
// carry on.
func parseArgs(fs *pflag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(fs.Output(), "Error: expected at most one DIRECTORY, got %d arguments\n", fs.NArg())
		fs.Usage()
		return 1
	}
	return -1
}

// setupLogging installs the default logger: text on a terminal, JSON
// otherwise.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openCollection resolves dir and loads its cards. Parse problems are left
// on the collection for the caller to judge.
func openCollection(dir string) (*collection.Collection, error) {
	root, err := collection.ResolveDirectory(dir)
	if err != nil {
		return nil, err
	}
	return collection.Open(root)
}

// openExistingStore opens the collection's database if there is one. It
// returns nil without error when the collection has never been drilled.
func openExistingStore(root string) (*storage.DB, error) {
	path := filepath.Join(root, storage.Filename)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return storage.Open(path)
}
