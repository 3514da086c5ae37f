package specvalidate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kr/pretty"
	"github.com/rogpeppe/go-internal/txtar"

	"forthc/internal/config"
	"forthc/internal/pipeline"
)

// GoldenCase is one fixture: a source program plus the int64 it should
// leave on the data stack after running.
type GoldenCase struct {
	Name   string
	Source string
	Want   int64
}

// LoadGoldenCases parses a txtar archive into GoldenCase values. Each
// archive file's name (minus a ".forth" suffix) is the case name; its
// body is the source, with the first line of trailing comment text after
// "\ want: " parsed as the expected result, e.g.:
//
//	-- square.forth --
//	: square dup * ;
//	9 square
//	\ want: 81
func LoadGoldenCases(data []byte) ([]GoldenCase, error) {
	archive := txtar.Parse(data)
	cases := make([]GoldenCase, 0, len(archive.Files))
	for _, f := range archive.Files {
		name := strings.TrimSuffix(f.Name, ".forth")
		source := string(f.Data)
		want, err := parseWant(source)
		if err != nil {
			return nil, fmt.Errorf("golden case %q: %w", name, err)
		}
		cases = append(cases, GoldenCase{Name: name, Source: source, Want: want})
	}
	return cases, nil
}

func parseWant(source string) (int64, error) {
	const marker = `\ want: `
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			return strconv.ParseInt(strings.TrimPrefix(line, marker), 10, 64)
		}
	}
	return 0, fmt.Errorf("no %q marker found", marker)
}

// CheckGoldenCase runs tc.Source through the fast-compile backend and
// reports whether it matches tc.Want. On mismatch, diff is a
// github.com/kr/pretty structural diff of the two values — overkill for
// two int64s today, but the same call site future GoldenCase fields
// (stack snapshots, diagnostics) would want a real structural diff for.
func CheckGoldenCase(tc GoldenCase) (ok bool, diff string) {
	got, err := pipeline.New(config.BuildConfig{}, nil).RunJIT(tc.Source)
	if err != nil {
		return false, err.Error()
	}
	if got == tc.Want {
		return true, ""
	}
	return false, strings.Join(pretty.Diff(tc.Want, got), "\n")
}
