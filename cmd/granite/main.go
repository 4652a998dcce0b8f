package main

import (
	"fmt"
	"os"

	"github.com/granitedb/granite/cmd/granite/serve"
	"github.com/granitedb/granite/cmd/granite/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve.Run(os.Args[2:])
	case "version":
		version.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`granite - Columnar Storage Engine Compaction Node

Usage:
  granite <command> [options]

Commands:
  serve     Start the storage engine node
  version   Print version information
  help      Show this help message

Run 'granite <command> --help' for more information on a command.`)
}
