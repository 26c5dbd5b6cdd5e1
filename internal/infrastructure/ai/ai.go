// Package ai adapts model endpoints to the stepping interface the
// exploration loop consumes. The loop never sees a wire protocol; it hands
// over the conversation and receives either a capability call or text.
package ai

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

// Factory builds steppers from model definitions.
type Factory struct {
	httpClient *http.Client
	log        ports.Logger
}

// NewFactory builds a factory with a shared HTTP client.
func NewFactory(log ports.Logger) *Factory {
	return &Factory{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log,
	}
}

// ForModel implements ports.StepperFactory. A model without reachable
// credentials degrades to the offline heuristic stepper instead of failing,
// so the rest of the pipeline stays exercisable.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.Stepper, error) {
	switch model.Provider {
	case "anthropic", "":
		if resolveAuth(model.AuthEnvVar, "ANTHROPIC_API_KEY") == "" {
			f.log.Warn("no model credentials, using heuristic stepper", map[string]interface{}{
				"auth_env_var": model.AuthEnvVar,
			})
			return newHeuristicStepper(), nil
		}
		return newAnthropicStepper(model, f.httpClient), nil
	case "heuristic":
		return newHeuristicStepper(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", model.Provider)
	}
}

func resolveAuth(primary string, fallback string) string {
	if primary != "" {
		if value := os.Getenv(primary); value != "" {
			return value
		}
	}
	return os.Getenv(fallback)
}

func valueOrDefault(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}

func valueOrDefaultInt(value int, def int) int {
	if value == 0 {
		return def
	}
	return value
}

var _ ports.StepperFactory = (*Factory)(nil)
