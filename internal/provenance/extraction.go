package provenance

import (
	"os"
	"strconv"
	"strings"

	"forthc/internal/diagnostics"
)

// Extract scans source line by line for `\ KEY: VALUE` comment blocks
// preceding a `:` definition and returns the metadata attached to each
// word name it finds, mirroring original_source's extract_provenance:
// a GENERATED_BY line starts a new metadata record; it (and any fields
// parsed after it) stay associated with the next `: word` line and are
// flushed at that definition's closing `;` (or at the next `: ` line). A
// record that no definition follows before another GENERATED_BY line is
// replaced by the new one.
func Extract(source string) map[string]*Metadata {
	result := make(map[string]*Metadata)
	var currentWord string
	var current *Metadata

	flush := func() {
		if currentWord != "" && current != nil {
			result[currentWord] = current
			currentWord, current = "", nil
		}
	}

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, ": ") {
			flush()
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				currentWord = fields[1]
			}
		}

		switch {
		case strings.HasPrefix(trimmed, `\ GENERATED_BY: `):
			current = New(strings.TrimPrefix(trimmed, `\ GENERATED_BY: `))
		case current != nil && strings.HasPrefix(trimmed, `\ PATTERN_ID: `):
			current.PatternID = strings.TrimPrefix(trimmed, `\ PATTERN_ID: `)
		case current != nil && strings.HasPrefix(trimmed, `\ TIMESTAMP: `):
			current.Timestamp = strings.TrimPrefix(trimmed, `\ TIMESTAMP: `)
		case current != nil && strings.HasPrefix(trimmed, `\ SPEC_HASH: `):
			current.SpecHash = strings.TrimPrefix(trimmed, `\ SPEC_HASH: `)
		case current != nil && strings.HasPrefix(trimmed, `\ VERIFIED: `):
			current.Verification = parseVerificationStatus(strings.TrimPrefix(trimmed, `\ VERIFIED: `))
		case current != nil && strings.HasPrefix(trimmed, `\ OPTIMIZATION_LEVEL: `):
			current.Context.OptimizationLevel = strings.TrimPrefix(trimmed, `\ OPTIMIZATION_LEVEL: `)
		case current != nil && strings.HasPrefix(trimmed, `\ PERFORMANCE_TARGET: `):
			current.Context.PerformanceTarget = strings.TrimPrefix(trimmed, `\ PERFORMANCE_TARGET: `)
		}

		if strings.HasSuffix(trimmed, ";") && currentWord != "" {
			flush()
			currentWord = ""
		}
	}
	flush()
	return result
}

// parseVerificationStatus parses the exact format Summary produces, e.g.
// "stack_balanced=true, tests_passed=3/3, type_checked=true, compiled=true",
// mirroring original_source's parse_verification_status.
func parseVerificationStatus(s string) VerificationStatus {
	var v VerificationStatus
	for _, part := range strings.Split(s, ", ") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "stack_balanced":
			v.StackBalanced = value == "true"
		case "tests_passed":
			if passed, total, ok := parseTestResults(value); ok {
				v.TestsPassed, v.TestsTotal = passed, total
			}
		case "type_checked":
			v.TypeChecked = value == "true"
		case "compiled":
			v.Compiled = value == "true"
		}
	}
	return v
}

// parseTestResults parses an "N/M" pair, mirroring parse_test_results.
func parseTestResults(s string) (passed, total int, ok bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	p, err1 := strconv.Atoi(parts[0])
	t, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return p, t, true
}

// ExtractFromFiles reads and extracts provenance from every path,
// merging results (a later file's word overwrites an earlier one's),
// mirroring original_source's extract_from_files.
func ExtractFromFiles(paths []string) (map[string]*Metadata, error) {
	all := make(map[string]*Metadata)
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, diagnostics.New(diagnostics.InternalError, "reading "+path+": "+err.Error())
		}
		for word, meta := range Extract(string(source)) {
			all[word] = meta
		}
	}
	return all, nil
}

// Extractor applies agent/pattern/verified-only filters on top of Extract,
// mirroring original_source's ProvenanceExtractor.
type Extractor struct {
	FilterAgent        string
	FilterPattern      string
	FilterVerifiedOnly bool
}

// Extract runs Extract(source) and drops any entry that fails the
// extractor's configured filters.
func (e Extractor) Extract(source string) map[string]*Metadata {
	all := Extract(source)
	for word, meta := range all {
		if e.FilterAgent != "" && meta.GeneratedBy != e.FilterAgent {
			delete(all, word)
			continue
		}
		if e.FilterPattern != "" && meta.PatternID != e.FilterPattern {
			delete(all, word)
			continue
		}
		if e.FilterVerifiedOnly && !meta.Verification.IsVerified() {
			delete(all, word)
		}
	}
	return all
}
