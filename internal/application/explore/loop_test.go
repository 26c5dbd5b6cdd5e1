package explore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

// scriptedStepper replays canned step results and records every request it
// was handed.
type scriptedStepper struct {
	script   []ports.StepResult
	errs     []error
	requests []ports.StepRequest
}

func (s *scriptedStepper) Name() string { return "scripted" }

func (s *scriptedStepper) Step(_ context.Context, req ports.StepRequest) (ports.StepResult, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return ports.StepResult{}, s.errs[i]
	}
	if i >= len(s.script) {
		return ports.StepResult{}, nil
	}
	return s.script[i], nil
}

func testSettings() domain.ExplorerSettings {
	return domain.ExplorerSettings{MaxSteps: 30, SearchTimeoutSeconds: 5, OutputCapChars: 10000}
}

func call(name string, args map[string]string) ports.StepResult {
	if args == nil {
		args = map[string]string{}
	}
	return ports.StepResult{Call: &ports.ToolCall{Name: name, Args: args}}
}

func TestExploreFormalAnswerParsed(t *testing.T) {
	stepper := &scriptedStepper{script: []ports.StepResult{
		call(toolFinalAnswer, map[string]string{
			"answer": `{"summary":"a widget factory","key_files":["go.mod"],"features":["Widget list","Widget search"]}`,
		}),
	}}
	loop := New(stepper, testSettings(), nopLogger{})

	result, outcome, err := loop.Explore(context.Background(), "what does this do", t.TempDir(), domain.ModeFeatures)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if outcome != domain.OutcomeOK {
		t.Fatalf("got outcome %v, want OK", outcome)
	}
	if result.Features == nil || result.Features.Summary != "a widget factory" {
		t.Fatalf("parsed result wrong: %+v", result)
	}
	if len(result.Features.Features) != 2 {
		t.Fatalf("features lost: %+v", result.Features)
	}
	if result.Fallback {
		t.Fatal("formal answer must not be marked fallback")
	}
}

func TestExploreDegradedParse(t *testing.T) {
	raw := "I could not produce JSON but here is prose."
	stepper := &scriptedStepper{script: []ports.StepResult{
		call(toolFinalAnswer, map[string]string{"answer": raw}),
	}}
	loop := New(stepper, testSettings(), nopLogger{})

	result, outcome, err := loop.Explore(context.Background(), "", t.TempDir(), domain.ModeFirstPass)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if outcome != domain.OutcomeOK {
		t.Fatalf("degraded parse still counts as answered, got %v", outcome)
	}
	if result.FirstPass == nil || result.FirstPass.Summary != raw {
		t.Fatalf("raw text should become the summary: %+v", result)
	}
	if result.FirstPass.KeyFiles == nil || len(result.FirstPass.KeyFiles) != 0 {
		t.Fatalf("arrays should be empty, not nil: %+v", result.FirstPass)
	}
}

func TestExploreFallbackOnSilentStop(t *testing.T) {
	stepper := &scriptedStepper{script: []ports.StepResult{
		{Text: "The repo appears to be a CLI tool."},
		{}, // model stops without calling final_answer
	}}
	loop := New(stepper, testSettings(), nopLogger{})

	result, outcome, err := loop.Explore(context.Background(), "", t.TempDir(), domain.ModeGeneric)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if outcome != domain.OutcomeFallback {
		t.Fatalf("got outcome %v, want fallback", outcome)
	}
	if !result.Fallback {
		t.Fatal("result should be marked fallback")
	}
	if !strings.Contains(result.Raw, "CLI tool") || !strings.Contains(result.Raw, "no formal answer") {
		t.Fatalf("fallback text wrong: %q", result.Raw)
	}
}

func TestExploreStepCeiling(t *testing.T) {
	// The model loops on overview calls forever; the ceiling must cut it off.
	var script []ports.StepResult
	for i := 0; i < 50; i++ {
		script = append(script, ports.StepResult{
			Text: "still looking",
			Call: &ports.ToolCall{Name: toolRepoOverview, Args: map[string]string{}},
		})
	}
	settings := testSettings()
	settings.MaxSteps = 5
	stepper := &scriptedStepper{script: script}
	loop := New(stepper, settings, nopLogger{})

	_, outcome, err := loop.Explore(context.Background(), "", t.TempDir(), domain.ModeGeneric)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if outcome != domain.OutcomeFallback {
		t.Fatalf("got outcome %v, want fallback", outcome)
	}
	if len(stepper.requests) != 5 {
		t.Fatalf("got %d steps, want exactly 5", len(stepper.requests))
	}
}

func TestExploreErrorWithoutSalvageableText(t *testing.T) {
	stepper := &scriptedStepper{errs: []error{errors.New("model unreachable")}}
	loop := New(stepper, testSettings(), nopLogger{})

	_, outcome, err := loop.Explore(context.Background(), "", t.TempDir(), domain.ModeFeatures)
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome != domain.OutcomeError {
		t.Fatalf("got outcome %v, want error", outcome)
	}
}

func TestExploreRejectsUnknownMode(t *testing.T) {
	loop := New(&scriptedStepper{}, testSettings(), nopLogger{})
	_, outcome, err := loop.Explore(context.Background(), "", t.TempDir(), domain.ExplorationMode("mystery"))
	if err == nil || outcome != domain.OutcomeError {
		t.Fatalf("unknown mode must fail, got outcome %v err %v", outcome, err)
	}
}

func TestExploreToolOutputsReachModel(t *testing.T) {
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "go.mod"), []byte("module example.com/widgets\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stepper := &scriptedStepper{script: []ports.StepResult{
		call(toolFileSummary, map[string]string{"file_path": "go.mod", "hypothesis": "module definition"}),
		call(toolFileSummary, map[string]string{"file_path": "missing.txt", "hypothesis": "does not exist"}),
		call(toolFinalAnswer, map[string]string{"answer": `{"summary":"ok"}`}),
	}}
	loop := New(stepper, testSettings(), nopLogger{})

	_, outcome, err := loop.Explore(context.Background(), "", repo, domain.ModeFeatures)
	if err != nil || outcome != domain.OutcomeOK {
		t.Fatalf("outcome %v err %v", outcome, err)
	}

	// Second request carries the file content as a tool message.
	second := stepper.requests[1]
	found := false
	for _, m := range second.Messages {
		if m.Role == "tool" && m.ToolName == toolFileSummary && strings.Contains(m.Text, "example.com/widgets") {
			found = true
		}
	}
	if !found {
		t.Fatalf("file content never reached the model: %+v", second.Messages)
	}

	// A missing file is reported in-band and the loop continues.
	third := stepper.requests[2]
	found = false
	for _, m := range third.Messages {
		if m.Role == "tool" && m.Text == "File not found" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing file should surface as tool output: %+v", third.Messages)
	}
}

func TestToolAvailabilityPerMode(t *testing.T) {
	tests := []struct {
		mode       domain.ExplorationMode
		wantSearch bool
	}{
		{domain.ModeFirstPass, false},
		{domain.ModeFeatures, true},
		{domain.ModeServices, true},
		{domain.ModeGeneric, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			stepper := &scriptedStepper{script: []ports.StepResult{
				call(toolFinalAnswer, map[string]string{"answer": "{}"}),
			}}
			loop := New(stepper, testSettings(), nopLogger{})
			if _, _, err := loop.Explore(context.Background(), "", t.TempDir(), tt.mode); err != nil {
				t.Fatal(err)
			}

			names := map[string]bool{}
			for _, spec := range stepper.requests[0].Tools {
				names[spec.Name] = true
			}
			if !names[toolRepoOverview] || !names[toolFileSummary] || !names[toolFinalAnswer] {
				t.Fatalf("base tools missing: %v", names)
			}
			if names[toolFulltextSearch] != tt.wantSearch {
				t.Fatalf("search availability = %v, want %v", names[toolFulltextSearch], tt.wantSearch)
			}
		})
	}
}

func TestServicesAnswerPassthroughAndRepoName(t *testing.T) {
	repo := filepath.Join(t.TempDir(), "widget-kit")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}
	answer := "FILENAME: pm2.config.js\n```js\nmodule.exports = {}\n```"
	stepper := &scriptedStepper{script: []ports.StepResult{
		call(toolFinalAnswer, map[string]string{"answer": answer}),
	}}
	loop := New(stepper, testSettings(), nopLogger{})

	result, outcome, err := loop.Explore(context.Background(), "", repo, domain.ModeServices)
	if err != nil || outcome != domain.OutcomeOK {
		t.Fatalf("outcome %v err %v", outcome, err)
	}
	if result.Raw != answer {
		t.Fatalf("services answer must pass through verbatim, got %q", result.Raw)
	}

	// The answer contract advertised to the model names the checkout dir.
	for _, spec := range stepper.requests[0].Tools {
		if spec.Name == toolFinalAnswer {
			if strings.Contains(spec.Description, "MY_REPO_NAME") {
				t.Fatal("placeholder not replaced in final answer description")
			}
			if !strings.Contains(spec.Description, "widget-kit") {
				t.Fatal("checkout name missing from final answer description")
			}
		}
	}
}

func TestDefaultPrompts(t *testing.T) {
	if got := DefaultPrompt(domain.ModeFirstPass); !strings.Contains(got, "comprehensive overview") {
		t.Fatalf("unexpected first_pass prompt: %q", got)
	}
	if got := DefaultPrompt(domain.ModeFeatures); !strings.Contains(got, "key features") {
		t.Fatalf("unexpected features prompt: %q", got)
	}
}
