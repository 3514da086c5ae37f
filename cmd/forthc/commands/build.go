package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"forthc/internal/config"
	"forthc/internal/pipeline"
)

// BuildCommand compiles a single source file to a native executable via
// the high-opt LLVM backend and system linker, the forthc analogue of
// the teacher's BuildCommand (resolve project root, load a manifest,
// delegate to a builder). Since forthc builds one source file rather
// than a multi-module project, BuildCommand loads forthc.json from the
// source file's directory for linker overrides, but always builds the
// file named on the command line.
func BuildCommand(args []string) error {
	path, out, verbose, err := parseBuildArgs(args)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	manifest, err := config.Load(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("failed to load project manifest: %w", err)
	}

	cfg := manifest.BuildConfig
	cfg.Optimization = config.O3
	cfg.Verbose = verbose
	if out != "" {
		cfg.OutputPath = out
	}

	output, err := pipeline.New(cfg, os.Stdout).BuildAOT(string(source))
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", path, err)
	}

	fmt.Printf("built %s\n", output)
	return nil
}

func parseBuildArgs(args []string) (path, out string, verbose bool, err error) {
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i+1 >= len(args) {
				return "", "", false, fmt.Errorf("-o requires an output path")
			}
			i++
			out = args[i]
		case "-v", "--verbose":
			verbose = true
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) == 0 {
		return "", "", false, fmt.Errorf("usage: forthc build [-o output] [-v] <file.forth>")
	}
	abs, absErr := filepath.Abs(positional[0])
	if absErr != nil {
		return "", "", false, fmt.Errorf("failed to resolve %s: %w", positional[0], absErr)
	}
	return abs, out, verbose, nil
}
