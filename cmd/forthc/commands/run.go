// Package commands implements forthc's subcommands, one function per
// command, mirroring the teacher's cmd/sentra/commands package shape:
// each command resolves its source path, builds a config, and delegates
// to internal/pipeline.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"forthc/internal/config"
	"forthc/internal/pipeline"
)

// RunCommand JIT-compiles and runs a single source file, printing
// whatever value is left on the data stack. The first argument that is
// not a flag is the source path;
// -O0 through -O3 select the optimizer schedule (default O1), and -v
// enables phase banners.
func RunCommand(args []string) error {
	path, level, verbose, err := parseRunArgs(args)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := config.BuildConfig{Optimization: level, Verbose: verbose}
	result, err := pipeline.New(cfg, os.Stdout).RunJIT(string(source))
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", path, err)
	}

	fmt.Println(result)
	return nil
}

func parseRunArgs(args []string) (path string, level config.OptimizationLevel, verbose bool, err error) {
	level = config.O1
	var positional []string
	for _, arg := range args {
		switch arg {
		case "-O0":
			level = config.O0
		case "-O1":
			level = config.O1
		case "-O2":
			level = config.O2
		case "-O3":
			level = config.O3
		case "-v", "--verbose":
			verbose = true
		default:
			positional = append(positional, arg)
		}
	}
	if len(positional) == 0 {
		return "", 0, false, fmt.Errorf("usage: forthc run [-O0|-O1|-O2|-O3] [-v] <file.forth>")
	}
	abs, absErr := filepath.Abs(positional[0])
	if absErr != nil {
		return "", 0, false, fmt.Errorf("failed to resolve %s: %w", positional[0], absErr)
	}
	return abs, level, verbose, nil
}
