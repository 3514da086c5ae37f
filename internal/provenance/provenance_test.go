package provenance

import "testing"

func TestToForthCommentAndExtractRoundTrip(t *testing.T) {
	m := New("forthc-jit").
		WithPattern("loop-unroll-1").
		WithSpecHash(SpecHash([]byte("spec text"))).
		WithVerification(VerificationStatus{}.WithStackBalanced(true).WithTests(3, 3).WithTypeChecked(true).WithCompiled(true))
	m.Context.OptimizationLevel = "O2"

	source := m.ToForthComment() + ": double 2 * ;\n"

	extracted := Extract(source)
	got, ok := extracted["double"]
	if !ok {
		t.Fatalf("expected metadata for word %q, extracted=%v", "double", extracted)
	}
	if got.GeneratedBy != m.GeneratedBy {
		t.Errorf("GeneratedBy = %q, want %q", got.GeneratedBy, m.GeneratedBy)
	}
	if got.PatternID != "loop-unroll-1" {
		t.Errorf("PatternID = %q", got.PatternID)
	}
	if got.SpecHash != m.SpecHash {
		t.Errorf("SpecHash = %q, want %q", got.SpecHash, m.SpecHash)
	}
	if !got.Verification.IsVerified() {
		t.Errorf("expected round-tripped verification status to report verified, got %+v", got.Verification)
	}
	if got.Context.OptimizationLevel != "O2" {
		t.Errorf("OptimizationLevel = %q", got.Context.OptimizationLevel)
	}
}

func TestExtractHandlesMultipleWords(t *testing.T) {
	source := "\\ GENERATED_BY: human\n" +
		"\\ TIMESTAMP: 2026-01-01T00:00:00Z\n" +
		"\\ VERIFIED: stack_balanced=false, tests_passed=0/0, type_checked=false, compiled=false\n" +
		": square dup * ;\n" +
		"\\ GENERATED_BY: forthc-llopt\n" +
		"\\ TIMESTAMP: 2026-01-02T00:00:00Z\n" +
		"\\ VERIFIED: stack_balanced=true, tests_passed=1/1, type_checked=true, compiled=true\n" +
		": cube dup dup * * ;\n"

	extracted := Extract(source)
	if len(extracted) != 2 {
		t.Fatalf("expected 2 words, got %d: %v", len(extracted), extracted)
	}
	if extracted["square"].GeneratedBy != "human" {
		t.Errorf("square.GeneratedBy = %q", extracted["square"].GeneratedBy)
	}
	if !extracted["cube"].Verification.IsVerified() {
		t.Errorf("expected cube to be verified")
	}
}

func TestExtractorFilters(t *testing.T) {
	source := "\\ GENERATED_BY: agent-a\n: foo ;\n" +
		"\\ GENERATED_BY: agent-b\n: bar ;\n"

	e := Extractor{FilterAgent: "agent-a"}
	got := e.Extract(source)
	if _, ok := got["foo"]; !ok {
		t.Error("expected foo (agent-a) to survive the filter")
	}
	if _, ok := got["bar"]; ok {
		t.Error("expected bar (agent-b) to be filtered out")
	}
}

func TestVerificationStatusSummary(t *testing.T) {
	v := VerificationStatus{}.WithTests(2, 4)
	if v.TestPassRate() != 0.5 {
		t.Errorf("TestPassRate = %v, want 0.5", v.TestPassRate())
	}
	if !v.HasFailures() {
		t.Error("expected HasFailures to be true for 2/4")
	}
	if v.IsVerified() {
		t.Error("2/4 passed should not report verified")
	}
}

func TestNewRunEmbedsRunIDInGeneratedBy(t *testing.T) {
	m, runID := NewRun("forthc")
	if runID.String() == "" {
		t.Fatal("expected a non-empty run id")
	}
	if m.GeneratedBy == "forthc" {
		t.Error("expected GeneratedBy to be stitched with the run id, got the bare agent name")
	}
}
