// cmd/forthc/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"forthc/cmd/forthc/commands"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"r": "run",
	"b": "build",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("forthc %s\n", version)
	case "run":
		if err := commands.RunCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "build":
		if err := commands.BuildCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "forthc: unknown command %q\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("forthc - AOT/JIT compiler for a stack-oriented concatenative language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  forthc run [-O0|-O1|-O2|-O3] [-v] <file.forth>   JIT-compile and run  (alias: r)")
	fmt.Println("  forthc build [-o output] [-v] <file.forth>       Build a native binary (alias: b)")
	fmt.Println("  forthc version                                   Print the version")
	fmt.Println("  forthc help                                      Show this message")
}
