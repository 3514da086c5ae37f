package optimizer

import (
	"strings"

	"forthc/internal/ir"
)

// hotWindowThreshold is the fixed execution-count floor a window (§4.14)
// must clear to be considered for fusion; a future adaptive mode
// (99th-percentile of observed counts) would replace this constant, not
// the fuser's structure.
const hotWindowThreshold uint64 = 10000

// ProfileData is the serializable per-window execution-count table
// driving FusePatterns; produced by an instrumented run and persisted
// across process boundaries so cross-process profiling (compile once,
// profile many runs, recompile) is possible (§4.14).
type ProfileData struct {
	Windows map[string]uint64
}

func NewProfileData() *ProfileData {
	return &ProfileData{Windows: make(map[string]uint64)}
}

func windowKey(ops []ir.Op) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, "|")
}

// Record adds count executions of the instruction window ops (length
// 2-4) to the profile.
func (p *ProfileData) Record(ops []ir.Op, count uint64) {
	p.Windows[windowKey(ops)] += count
}

// PGOStats reports what FusePatterns actually did.
type PGOStats struct {
	PatternsFound    int
	FusionsApplied   int
	EstimatedSpeedup float64
}

func fusedCallName(key string) string {
	return "$fused$" + strings.ReplaceAll(key, "|", "_")
}

// FusePatterns scans instructions for 2-4 op windows whose recorded
// execution count clears hotWindowThreshold and replaces the longest hot
// match at each position with a single synthetic Call naming the fused
// pattern (§4.14). Unlike RecognizeSuperinstructions' fixed table, the
// fused names here are specific to one profiled program, not part of the
// language's op set. Backends resolve them the same way as any other
// Call; nothing in this module defines a word under a fused name, so the
// fast-compile backend's Finalize rejects them unless the caller declares
// and defines one.
func FusePatterns(instructions []ir.Instruction, profile *ProfileData) ([]ir.Instruction, PGOStats) {
	var stats PGOStats
	rb := NewRebuilder(len(instructions))
	i := 0
	for i < len(instructions) {
		bestLen := 0
		var bestKey string
		var bestCount uint64

		for length := 4; length >= 2; length-- {
			if i+length > len(instructions) {
				continue
			}
			ops := make([]ir.Op, length)
			for k := 0; k < length; k++ {
				ops[k] = instructions[i+k].Op
			}
			key := windowKey(ops)
			if count, ok := profile.Windows[key]; ok && count >= hotWindowThreshold && count > bestCount {
				bestLen, bestKey, bestCount = length, key, count
			}
		}

		if bestLen > 0 {
			stats.PatternsFound++
			stats.FusionsApplied++
			rb.StartOld(i)
			rb.Emit(ir.Call(fusedCallName(bestKey)))
			for k := 1; k < bestLen; k++ {
				rb.StartOld(i + k)
			}
			i += bestLen
			continue
		}

		rb.StartOld(i)
		rb.Emit(instructions[i])
		i++
	}

	if stats.FusionsApplied > 0 {
		stats.EstimatedSpeedup = 1.0 + 0.01*float64(stats.FusionsApplied)
	}
	return rb.Finish(len(instructions)), stats
}
