package testrun

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAssemblyInfo_Name(t *testing.T) {
	a := AssemblyInfo{AssemblyPath: "bin/Core.dll", DisplayName: "Core"}
	if got := a.Name(); got != "Core" {
		t.Errorf("Name() = %q, want Core", got)
	}

	a.DisplayName = ""
	if got := a.Name(); got != "bin/Core.dll" {
		t.Errorf("Name() = %q, want assembly path fallback", got)
	}
}

func TestProcessResult_Succeeded(t *testing.T) {
	if !(ProcessResult{ExitCode: 0}).Succeeded() {
		t.Error("Succeeded() = false for exit 0")
	}
	if (ProcessResult{ExitCode: 1}).Succeeded() {
		t.Error("Succeeded() = true for exit 1")
	}
}

func TestTestResult_ErrorOutput(t *testing.T) {
	tr := TestResult{
		ProcessResults: []ProcessResult{
			{ErrorLines: []string{"first", "second"}},
			{ErrorLines: nil},
			{ErrorLines: []string{"third"}},
		},
	}

	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, tr.ErrorOutput()); diff != "" {
		t.Errorf("ErrorOutput() mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenProcessResults(t *testing.T) {
	results := []TestResult{
		{ProcessResults: []ProcessResult{{ExitCode: 0}, {ExitCode: 1}}},
		{},
		{ProcessResults: []ProcessResult{{ExitCode: 2}}},
	}

	flat := FlattenProcessResults(results)
	if len(flat) != 3 {
		t.Fatalf("FlattenProcessResults() length = %d, want 3", len(flat))
	}
	if flat[2].ExitCode != 2 {
		t.Errorf("flat[2].ExitCode = %d, want 2", flat[2].ExitCode)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Core.UnitTests", "Core.UnitTests"},
		{"spaces", "Core Tests", "Core_Tests"},
		{"separators", `a/b\c:d`, "a_b_c_d"},
		{"wildcards", "a*b?c", "a_b_c"},
		{"angle brackets and pipe", "a<b>c|d", "a_b_c_d"},
		{"quotes", `a"b`, "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeFileName(tt.input); got != tt.want {
				t.Errorf("SafeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
