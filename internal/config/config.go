// Package config carries the per-build configuration §10.3 describes:
// optimization level, backend selection, target triple, and linker flags,
// loaded from a `forthc.json` manifest when present.
//
// Adapted from the teacher's internal/build/builder.go (BuildConfig,
// ProjectManifest, loadManifest's create-default-on-missing-file
// behavior) and from original_source/compiler/backend/src/linker/mod.rs's
// LinkerConfig for the linker-flag fields.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"forthc/internal/linker"
)

// OptimizationLevel selects which backend a build targets.
type OptimizationLevel int

const (
	O0 OptimizationLevel = iota
	O1
	O2
	O3
)

func (o OptimizationLevel) String() string {
	return [...]string{"O0", "O1", "O2", "O3"}[o]
}

// Backend names which compilation backend an OptimizationLevel selects.
type Backend int

const (
	FastCompile Backend = iota // internal/backend/jit
	HighOpt                    // internal/backend/llopt
)

func (b Backend) String() string {
	if b == FastCompile {
		return "fast-compile"
	}
	return "high-opt"
}

// SelectBackend maps an optimization level to the backend that compiles
// it: O0-O2 go through the in-process JIT, O3 goes through the
// LLVM-emitting high-opt backend, per §4.15/§4.16.
func (o OptimizationLevel) SelectBackend() Backend {
	if o == O3 {
		return HighOpt
	}
	return FastCompile
}

// BuildConfig is the Go analogue of the teacher's BuildConfig, generalized
// from "compile this .sn file" to "compile this Forth program at this
// optimization level, for this target, with these linker flags".
type BuildConfig struct {
	EntryPoint    string            `json:"entry_point"`
	OutputPath    string            `json:"output_path"`
	Optimization  OptimizationLevel `json:"optimization_level"`
	TargetTriple  string            `json:"target_triple,omitempty"`
	MinLinkerVers string            `json:"min_linker_version,omitempty"`
	Linker        LinkerFlags       `json:"linker"`
	Verbose       bool              `json:"verbose"`
}

// LinkerFlags is the subset of original_source's LinkerConfig a build
// manifest can override; ToLinkerConfig fills in the rest of
// linker.Config's defaults.
type LinkerFlags struct {
	Static bool     `json:"static"`
	PIE    bool     `json:"pie"`
	Strip  bool     `json:"strip"`
	Libs   []string `json:"libs,omitempty"`
}

// ToLinkerConfig builds an internal/linker.Config from the build config,
// starting from linker.DefaultConfig(). Mode, PIE, Strip, Optimize and
// MinToolchainVersion are always taken from the build config, so a zero
// LinkerFlags gives dynamic, non-PIE, unstripped output; Libs and Output
// replace the defaults only when set.
func (c BuildConfig) ToLinkerConfig() linker.Config {
	lc := linker.DefaultConfig()
	lc.Mode = linker.Dynamic
	if c.Linker.Static {
		lc.Mode = linker.Static
	}
	lc.PIE = c.Linker.PIE
	lc.Strip = c.Linker.Strip
	lc.Optimize = c.Optimization != O0
	lc.MinToolchainVersion = c.MinLinkerVers
	if len(c.Linker.Libs) > 0 {
		lc.Libs = c.Linker.Libs
	}
	if c.OutputPath != "" {
		lc.Output = c.OutputPath
	}
	return lc
}

// ProjectManifest is the Go analogue of the teacher's ProjectManifest
// (sentra.json), renamed to forthc.json for this module.
type ProjectManifest struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	Author      string      `json:"author,omitempty"`
	License     string      `json:"license,omitempty"`
	EntryPoint  string      `json:"entry_point"`
	BuildConfig BuildConfig `json:"build"`
}

// ManifestFile is the default manifest filename, the forthc equivalent of
// the teacher's sentra.json.
const ManifestFile = "forthc.json"

// Load reads <projectRoot>/forthc.json, the same defaults-on-missing-file
// behavior as the teacher's loadManifest: a missing manifest yields a
// ProjectManifest with sensible defaults rather than an error, so a bare
// directory with no manifest still builds.
func Load(projectRoot string) (*ProjectManifest, error) {
	manifestPath := filepath.Join(projectRoot, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ProjectManifest{
				Name:       filepath.Base(projectRoot),
				Version:    "0.1.0",
				EntryPoint: "main.forth",
			}, nil
		}
		return nil, err
	}

	var manifest ProjectManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	if manifest.EntryPoint == "" {
		manifest.EntryPoint = "main.forth"
	}
	return &manifest, nil
}
