package optimizer

import (
	"strings"

	"forthc/internal/ir"
	"forthc/internal/types"
)

// CallSiteKey identifies one OpCall instruction: the sequence it lives in
// ("" for Main, else a word name) and its index within that sequence.
type CallSiteKey struct {
	Sequence string
	Index    int
}

// TypeInferenceResults maps each call site of a word to the concrete
// input types observed there (§4.12). A first-order stack language has no
// runtime dispatch, so every call site resolves to exactly one concrete
// instantiation; a word is worth specializing only when different call
// sites resolve it to different instantiations.
type TypeInferenceResults map[CallSiteKey][]types.StackType

// SpecializationStats reports what Specialize actually did.
type SpecializationStats struct {
	WordsSpecialized   int
	CallSitesRewritten int
	CopiesCreated      int
}

func mangle(name string, inputs []types.StackType) string {
	parts := make([]string, 0, len(inputs)+1)
	parts = append(parts, name)
	for _, t := range inputs {
		parts = append(parts, strings.ToLower(t.Kind.String()))
	}
	return strings.Join(parts, "$")
}

func sequenceFor(prog *ir.ForthIR, name string) ([]ir.Instruction, bool) {
	if name == "" {
		return prog.Main, true
	}
	w, ok := prog.Words[name]
	if !ok {
		return nil, false
	}
	return w.Instructions, true
}

// Specialize rewrites prog so that every word called with more than one
// distinct concrete input-type signature gets a monomorphic copy per
// signature, named by mangling the kinds onto the original name
// (`name$int`, `name$float$int$int`, §4.12). Each call site is rewritten
// to target the matching copy; a word called with only one signature —
// the common case — is left untouched.
func Specialize(prog *ir.ForthIR, results TypeInferenceResults) SpecializationStats {
	var stats SpecializationStats
	created := map[string]bool{}
	variantsOf := map[string]map[string]bool{}
	type site struct {
		seq             []ir.Instruction
		index           int
		callee, mangled string
	}
	var sites []site

	for key, inputs := range results {
		seq, ok := sequenceFor(prog, key.Sequence)
		if !ok || key.Index < 0 || key.Index >= len(seq) {
			continue
		}
		inst := seq[key.Index]
		if inst.Op != ir.OpCall {
			continue
		}
		if _, ok := prog.GetWord(inst.CallName); !ok || len(inputs) == 0 {
			continue
		}

		mangled := mangle(inst.CallName, inputs)
		if variantsOf[inst.CallName] == nil {
			variantsOf[inst.CallName] = map[string]bool{}
		}
		variantsOf[inst.CallName][mangled] = true
		sites = append(sites, site{seq, key.Index, inst.CallName, mangled})
	}

	for _, s := range sites {
		if len(variantsOf[s.callee]) < 2 {
			continue
		}
		if !created[s.mangled] {
			clone := ir.NewWordDef(s.mangled, append([]ir.Instruction(nil), prog.Words[s.callee].Instructions...))
			prog.AddWord(clone)
			created[s.mangled] = true
			stats.CopiesCreated++
		}

		s.seq[s.index].CallName = s.mangled
		stats.CallSitesRewritten++
	}

	for _, variants := range variantsOf {
		if len(variants) > 1 {
			stats.WordsSpecialized++
		}
	}

	return stats
}
