// Package explore implements the bounded tool-calling loop that turns a
// cloned repository plus a prompt into a structured insight payload.
package explore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

const fallbackNote = "\n\n(Note: no formal answer was submitted; using last reasoning text as answer.)"

// Loop implements ports.Explorer. One Loop is shared across runs; all
// per-run state lives on the stack of Explore.
type Loop struct {
	stepper  ports.Stepper
	settings domain.ExplorerSettings
	log      ports.Logger
}

// New builds a Loop around a stepping capability.
func New(stepper ports.Stepper, settings domain.ExplorerSettings, log ports.Logger) *Loop {
	return &Loop{stepper: stepper, settings: settings, log: log}
}

// Explore implements ports.Explorer. The run ends in one of three ways: a
// formal answer (OK), an exhausted step budget or a silent stop with earlier
// reasoning text to salvage (FALLBACK), or nothing usable at all (ERROR).
func (l *Loop) Explore(ctx context.Context, prompt, repoPath string, mode domain.ExplorationMode) (domain.ExplorationResult, domain.ExplorationOutcome, error) {
	started := time.Now()
	cfg, err := ConfigFor(mode)
	if err != nil {
		return domain.ExplorationResult{}, domain.OutcomeError, err
	}
	if prompt == "" {
		prompt = DefaultPrompt(mode)
	}

	finalAnswerDesc := cfg.FinalAnswerDesc
	if mode == domain.ModeServices {
		finalAnswerDesc = replaceRepoName(finalAnswerDesc, repoPath)
	}

	box := &toolbox{
		repoPath:      repoPath,
		fileLines:     cfg.FileLines,
		searchTimeout: time.Duration(l.settings.SearchTimeoutSeconds) * time.Second,
		outputCap:     l.settings.OutputCapChars,
	}
	specs := box.specs(cfg, finalAnswerDesc)

	messages := []ports.Message{{Role: "user", Text: prompt}}
	lastText := ""

	for step := 0; step < l.settings.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return l.salvage(mode, lastText, err)
		}

		result, err := l.stepper.Step(ctx, ports.StepRequest{
			System:   cfg.System,
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			return l.salvage(mode, lastText, fmt.Errorf("model step failed: %w", err))
		}

		if text := strings.TrimSpace(result.Text); text != "" {
			lastText = text
			messages = append(messages, ports.Message{Role: "assistant", Text: text})
		}

		if result.Call == nil {
			if result.Text == "" {
				// The model stopped producing anything; no point looping on.
				break
			}
			continue
		}

		if result.Call.Name == toolFinalAnswer {
			answer := result.Call.Args["answer"]
			l.log.Info("exploration answered", map[string]interface{}{
				"mode":        string(mode),
				"steps":       step + 1,
				"duration_ms": time.Since(started).Milliseconds(),
			})
			return parseAnswer(mode, answer), domain.OutcomeOK, nil
		}

		l.log.Debug("tool call", map[string]interface{}{
			"tool": result.Call.Name, "args": result.Call.Args,
		})
		output := box.run(ctx, *result.Call)
		messages = append(messages,
			ports.Message{Role: "assistant", Text: fmt.Sprintf("Calling %s", result.Call.Name)},
			ports.Message{Role: "tool", ToolName: result.Call.Name, Text: output},
		)
	}

	return l.salvage(mode, lastText, fmt.Errorf("exploration ended without a formal answer (step budget %d)", l.settings.MaxSteps))
}

// salvage converts an answerless run into a fallback result when there is
// reasoning text to fall back on, and into an error otherwise.
func (l *Loop) salvage(mode domain.ExplorationMode, lastText string, cause error) (domain.ExplorationResult, domain.ExplorationOutcome, error) {
	if lastText == "" {
		return domain.ExplorationResult{}, domain.OutcomeError, cause
	}
	l.log.Warn("no formal answer, falling back to last reasoning text", map[string]interface{}{
		"mode": string(mode), "cause": cause.Error(),
	})
	result := parseAnswer(mode, lastText+fallbackNote)
	result.Fallback = true
	return result, domain.OutcomeFallback, nil
}

var _ ports.Explorer = (*Loop)(nil)
