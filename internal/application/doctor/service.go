// Package doctor runs environment diagnostics for the server: configuration,
// the subprocess tools the exploration loop shells out to, and credentials.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

// requiredBinaries are shelled out to at runtime. git clones checkouts, rg
// backs the fulltext search tool, tree renders the repository map.
var requiredBinaries = []string{"git", "rg", "tree"}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s", cfg.ConfigFormatVersion)))

	for _, bin := range requiredBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			checks = append(checks, ok("Binary "+bin, path))
		} else {
			checks = append(checks, fail("Binary "+bin, "not found in PATH"))
		}
	}

	checks = append(checks, dirCheck("Data directory", cfg.Store.DataDir))
	checks = append(checks, dirCheck("Clone area", cfg.Clone.BasePath))

	if envMissing(cfg.GitHub.TokenEnvVar, "GITHUB_TOKEN") {
		checks = append(checks, warn("GitHub token", "not set, unauthenticated rate limits apply"))
	} else {
		checks = append(checks, ok("GitHub token", "present"))
	}

	checks = append(checks, modelCheck(cfg.Model))

	return domain.HealthReport{Checks: checks}, nil
}

func modelCheck(model domain.ModelDefinition) domain.HealthCheck {
	switch model.Provider {
	case "", "anthropic":
		if envMissing(model.AuthEnvVar, "ANTHROPIC_API_KEY") {
			return warn("Model auth", "ANTHROPIC_API_KEY missing, explorations degrade to the offline stepper")
		}
		return ok("Model auth", "API key present")
	case "heuristic":
		return ok("Model auth", "offline stepper, no key needed")
	default:
		return warn("Model auth", fmt.Sprintf("unknown provider %q", model.Provider))
	}
}

func dirCheck(name, path string) domain.HealthCheck {
	if path == "" {
		return warn(name, "not configured")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fail(name, fmt.Sprintf("not writable: %v", err))
	}
	return ok(name, path)
}

func envMissing(primary, fallback string) bool {
	if primary != "" && os.Getenv(primary) != "" {
		return false
	}
	if fallback != "" && os.Getenv(fallback) != "" {
		return false
	}
	return true
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
