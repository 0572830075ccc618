package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/flo-mic/stackdash/internal/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmd.Init(os.Args[2:], os.Stdout)
	case "inventory":
		err = cmd.Inventory(os.Args[2:], os.Stdout)
	case "run":
		err = cmd.Run(os.Args[2:], os.Stdout)
	case "pull":
		err = cmd.Pull(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: stackdash <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  init [--reinit]                Configure a stackdashd host and this CLI")
	fmt.Fprintln(os.Stderr, "  inventory [--json]             List hosts and stacks")
	fmt.Fprintln(os.Stderr, "  run [--mode script|check]      Start a run and follow its events")
	fmt.Fprintln(os.Stderr, "  pull <host>/<stack> [--dest]   Download and unpack a stack bundle")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "STACKDASH_SERVER and STACKDASH_TOKEN override ~/.config/stackdash/client.yaml.")
}
