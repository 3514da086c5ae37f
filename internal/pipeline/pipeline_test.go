package pipeline

import (
	"strings"
	"testing"

	"forthc/internal/config"
)

func TestRunFrontEndSimpleArithmetic(t *testing.T) {
	p := New(config.BuildConfig{}, nil)
	fe, err := p.RunFrontEnd("2 3 + .")
	if err != nil {
		t.Fatalf("RunFrontEnd failed: %v", err)
	}
	if len(fe.Program.Main) == 0 {
		t.Fatal("expected a non-empty top-level sequence")
	}
}

func TestRunFrontEndWithDefinitions(t *testing.T) {
	p := New(config.BuildConfig{}, nil)
	source := ": double 2 * ;\n: quadruple double double ;\n5 quadruple ."
	fe, err := p.RunFrontEnd(source)
	if err != nil {
		t.Fatalf("RunFrontEnd failed: %v", err)
	}
	if _, ok := fe.Program.GetWord("double"); !ok {
		t.Error("expected word \"double\" in the lowered program")
	}
	if _, ok := fe.Program.GetWord("quadruple"); !ok {
		t.Error("expected word \"quadruple\" in the lowered program")
	}
}

func TestRunFrontEndRejectsReservedMainName(t *testing.T) {
	p := New(config.BuildConfig{}, nil)
	_, err := p.RunFrontEnd(": main 1 ;")
	if err == nil {
		t.Fatal("expected an error defining a word named \"main\"")
	}
}

func TestRunJITArithmetic(t *testing.T) {
	p := New(config.BuildConfig{}, nil)
	got, err := p.RunJIT("6 7 *")
	if err != nil {
		t.Fatalf("RunJIT failed: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestRunJITWithUserDefinedWord(t *testing.T) {
	p := New(config.BuildConfig{}, nil)
	got, err := p.RunJIT(": square dup * ;\n9 square")
	if err != nil {
		t.Fatalf("RunJIT failed: %v", err)
	}
	if got != 81 {
		t.Fatalf("got %d, want 81", got)
	}
}

func TestVerboseBannersWrittenWhenEnabled(t *testing.T) {
	var out strings.Builder
	p := New(config.BuildConfig{Verbose: true}, &out)
	if _, err := p.RunFrontEnd("1 2 +"); err != nil {
		t.Fatalf("RunFrontEnd failed: %v", err)
	}
	if !strings.Contains(out.String(), "Lexing...") {
		t.Errorf("expected a verbose phase banner, got %q", out.String())
	}
}

func TestOptimizerLevelForMapping(t *testing.T) {
	cases := map[config.OptimizationLevel]string{
		config.O0: "none",
		config.O1: "basic",
		config.O2: "standard",
		config.O3: "aggressive",
	}
	for level, want := range cases {
		if got := optimizerLevelFor(level).String(); got != want {
			t.Errorf("optimizerLevelFor(%s) = %s, want %s", level, got, want)
		}
	}
}
