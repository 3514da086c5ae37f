// Package provenance implements §6.6 and SPEC_FULL §12 item 3: a
// provenance block attached to a word definition records who/what
// generated it, when, against which spec, and whether it has been
// verified, embedded as a `\ KEY: VALUE` comment block immediately
// preceding the `:` that starts the definition.
//
// Grounded on original_source/compiler/src/provenance/{metadata,extraction}.rs.
package provenance

import (
	"fmt"
	"strings"
	"time"
)

// Metadata is the Go analogue of original_source's ProvenanceMetadata.
type Metadata struct {
	GeneratedBy  string
	PatternID    string // empty means absent, matching the Rust Option<String>
	Timestamp    string // RFC3339
	Verification VerificationStatus
	SpecHash     string
	Context      GenerationContext
	Custom       map[string]string
}

// New creates metadata with the required GeneratedBy field and the
// remaining fields defaulted, mirroring ProvenanceMetadata::new.
func New(generatedBy string) *Metadata {
	return &Metadata{
		GeneratedBy: generatedBy,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Custom:      make(map[string]string),
	}
}

func (m *Metadata) WithPattern(patternID string) *Metadata {
	m.PatternID = patternID
	return m
}

func (m *Metadata) WithSpecHash(hash string) *Metadata {
	m.SpecHash = hash
	return m
}

func (m *Metadata) WithContext(ctx GenerationContext) *Metadata {
	m.Context = ctx
	return m
}

func (m *Metadata) WithVerification(v VerificationStatus) *Metadata {
	m.Verification = v
	return m
}

func (m *Metadata) AddCustom(key, value string) *Metadata {
	if m.Custom == nil {
		m.Custom = make(map[string]string)
	}
	m.Custom[key] = value
	return m
}

// ToForthComment renders the metadata as the `\ KEY: VALUE` comment block
// extraction.go's Extract parses back, mirroring
// ProvenanceMetadata::to_forth_comment field for field and order.
func (m *Metadata) ToForthComment() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\\ GENERATED_BY: %s\n", m.GeneratedBy)
	if m.PatternID != "" {
		fmt.Fprintf(&b, "\\ PATTERN_ID: %s\n", m.PatternID)
	}
	fmt.Fprintf(&b, "\\ TIMESTAMP: %s\n", m.Timestamp)
	fmt.Fprintf(&b, "\\ VERIFIED: %s\n", m.Verification.Summary())
	if m.SpecHash != "" {
		fmt.Fprintf(&b, "\\ SPEC_HASH: %s\n", m.SpecHash)
	}
	if m.Context.OptimizationLevel != "" {
		fmt.Fprintf(&b, "\\ OPTIMIZATION_LEVEL: %s\n", m.Context.OptimizationLevel)
	}
	if m.Context.PerformanceTarget != "" {
		fmt.Fprintf(&b, "\\ PERFORMANCE_TARGET: %s\n", m.Context.PerformanceTarget)
	}
	for key, value := range m.Custom {
		fmt.Fprintf(&b, "\\ %s: %s\n", strings.ToUpper(key), value)
	}
	return b.String()
}

// VerificationStatus is the Go analogue of original_source's
// VerificationStatus.
type VerificationStatus struct {
	StackBalanced  bool
	TestsPassed    int
	TestsTotal     int
	TypeChecked    bool
	Compiled       bool
	PerformanceMet *bool
	VerifiedAt     string
}

func (v VerificationStatus) WithStackBalanced(balanced bool) VerificationStatus {
	v.StackBalanced = balanced
	return v
}

func (v VerificationStatus) WithTests(passed, total int) VerificationStatus {
	v.TestsPassed, v.TestsTotal = passed, total
	return v
}

func (v VerificationStatus) WithTypeChecked(checked bool) VerificationStatus {
	v.TypeChecked = checked
	return v
}

func (v VerificationStatus) WithCompiled(compiled bool) VerificationStatus {
	v.Compiled = compiled
	return v
}

func (v VerificationStatus) WithPerformanceMet(met bool) VerificationStatus {
	v.PerformanceMet = &met
	return v
}

// MarkVerified stamps VerifiedAt with the current time.
func (v VerificationStatus) MarkVerified() VerificationStatus {
	now := time.Now().UTC().Format(time.RFC3339)
	v.VerifiedAt = now
	return v
}

// IsVerified mirrors VerificationStatus::is_verified.
func (v VerificationStatus) IsVerified() bool {
	return v.StackBalanced && v.TypeChecked && v.Compiled &&
		v.TestsPassed == v.TestsTotal && v.TestsTotal > 0
}

// HasFailures mirrors VerificationStatus::has_failures.
func (v VerificationStatus) HasFailures() bool {
	return v.TestsTotal > 0 && v.TestsPassed < v.TestsTotal
}

// TestPassRate mirrors VerificationStatus::test_pass_rate.
func (v VerificationStatus) TestPassRate() float64 {
	if v.TestsTotal == 0 {
		return 0
	}
	return float64(v.TestsPassed) / float64(v.TestsTotal)
}

// Summary mirrors VerificationStatus::summary's exact format, since
// parseVerificationStatus in extraction.go parses this same string back.
func (v VerificationStatus) Summary() string {
	return fmt.Sprintf("stack_balanced=%t, tests_passed=%d/%d, type_checked=%t, compiled=%t",
		v.StackBalanced, v.TestsPassed, v.TestsTotal, v.TypeChecked, v.Compiled)
}

// GenerationContext is the Go analogue of original_source's
// GenerationContext.
type GenerationContext struct {
	OptimizationLevel string
	PerformanceTarget string
	SpecFile          string
	Iteration         int
	GenerationTimeMs  uint64
	Temperature       float64
	Metadata          map[string]string
}
