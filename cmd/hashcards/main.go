package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd/hashcards
var Version = "dev"

const usage = `hashcards - plain-text spaced repetition

Usage:
  hashcards <command> [options] [DIRECTORY]

Commands:
  drill           Review the cards that are due in a browser
  check           Check the integrity of a collection
  orphans list    List review records that match no card
  orphans delete  Remove review records that match no card
  version         Print the version

DIRECTORY defaults to the current working directory.
Run 'hashcards <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "drill":
		return runDrill(args[2:], stdout, stderr)
	case "check":
		return runCheck(args[2:], stdout, stderr)
	case "orphans":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: hashcards orphans <list|delete> [DIRECTORY]")
			return 1
		}
		switch args[2] {
		case "list":
			return runOrphansList(args[3:], stdout, stderr)
		case "delete":
			return runOrphansDelete(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown orphans command: %s\n", args[2])
			return 1
		}
	case "version", "--version":
		fmt.Fprintf(stdout, "hashcards %s\n", Version)
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
