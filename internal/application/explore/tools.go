package explore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/doeshing/gitscope/internal/ports"
)

const (
	toolRepoOverview   = "repo_overview"
	toolFileSummary    = "file_summary"
	toolFulltextSearch = "fulltext_search"
	toolFinalAnswer    = "final_answer"

	lineCap         = 200
	overviewTimeout = 10 * time.Second
)

// toolbox executes capability calls against a local checkout. Every method
// returns printable text; operational problems become messages the model can
// read and react to, never loop-level errors.
type toolbox struct {
	repoPath      string
	fileLines     int
	searchTimeout time.Duration
	outputCap     int
}

// specs advertises the toolbox to the model. first_pass runs without search
// to keep it shallow and fast.
func (t *toolbox) specs(cfg ModeConfig, finalAnswerDesc string) []ports.ToolSpec {
	specs := []ports.ToolSpec{
		{
			Name:        toolRepoOverview,
			Description: "Get a high-level view of the codebase architecture and structure. Use this to understand the project layout and identify where specific functionality might be located. Call this when you need to: 1) Orient yourself in an unfamiliar codebase, 2) Locate which directories/files might contain relevant code for a user's question, 3) Understand the overall project structure before diving deeper. Don't call this if you already know which specific files you need to examine.",
			Params:      map[string]string{},
		},
		{
			Name:        toolFileSummary,
			Description: fmt.Sprintf("Get a summary of what a specific file contains and its role in the codebase. Use this when you have identified a potentially relevant file and need to understand: 1) What functions/components it exports, 2) What its main responsibility is, 3) Whether it's worth exploring further for the user's question. Only the first %d lines of the file will be returned. Call this with a hypothesis like 'This file probably handles user authentication'. Don't call this to browse random files.", cfg.FileLines),
			Params: map[string]string{
				"file_path":  "Path to the file to summarize",
				"hypothesis": "What you think this file might contain or handle, based on its name/location",
			},
		},
	}
	if cfg.SearchEnabled {
		specs = append(specs, ports.ToolSpec{
			Name:        toolFulltextSearch,
			Description: `Search the entire codebase for a specific term. Use this when you need to find a specific function, component, or file. Call this when the user provided specific text that might be present in the codebase. For example, if the query is 'Add a subtitle to the User Journeys page', you could call this with the query "User Journeys". Don't call this if you do not have specific text to search for.`,
			Params: map[string]string{
				"query": "The term to search for",
			},
		})
	}
	specs = append(specs, ports.ToolSpec{
		Name:        toolFinalAnswer,
		Description: finalAnswerDesc,
		Params: map[string]string{
			"answer": "The final answer",
		},
	})
	return specs
}

// run dispatches one capability call.
func (t *toolbox) run(ctx context.Context, call ports.ToolCall) string {
	switch call.Name {
	case toolRepoOverview:
		return t.overview(ctx)
	case toolFileSummary:
		return t.fileSummary(call.Args["file_path"])
	case toolFulltextSearch:
		return t.search(ctx, call.Args["query"])
	default:
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}
}

// overview renders the tracked file tree, three levels deep.
func (t *toolbox) overview(ctx context.Context) string {
	if t.repoPath == "" {
		return "No repository path provided"
	}
	if _, err := os.Stat(t.repoPath); err != nil {
		return "Repository not cloned yet"
	}

	ctx, cancel := context.WithTimeout(ctx, overviewTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", "git ls-tree -r --name-only HEAD | tree -L 3 --fromfile")
	cmd.Dir = t.repoPath
	out, err := cmd.Output()
	if err != nil {
		return fmt.Sprintf("Error getting repo map: %v", err)
	}
	return t.capped(string(out))
}

// fileSummary returns the head of a file with long lines clipped.
func (t *toolbox) fileSummary(relPath string) string {
	if t.repoPath == "" {
		return "No repository path provided"
	}
	if relPath == "" {
		return "File not found"
	}
	fullPath := filepath.Join(t.repoPath, filepath.Clean(relPath))
	if !strings.HasPrefix(fullPath, filepath.Clean(t.repoPath)+string(os.PathSeparator)) {
		return "File not found"
	}
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return "File not found"
	}

	lines := strings.Split(string(raw), "\n")
	if len(lines) > t.fileLines {
		lines = lines[:t.fileLines]
	}
	for i, line := range lines {
		if len(line) > lineCap {
			lines[i] = line[:lineCap] + "..."
		}
	}
	return strings.Join(lines, "\n")
}

// search greps the checkout with bounded output. Exit status 1 means the
// pattern matched nothing, which is an answer, not a failure.
func (t *toolbox) search(ctx context.Context, query string) string {
	if t.repoPath == "" {
		return "No repository path provided"
	}
	if _, err := os.Stat(t.repoPath); err != nil {
		return "Repository not cloned yet"
	}
	if query == "" {
		return "No search query provided"
	}

	ctx, cancel := context.WithTimeout(ctx, t.searchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rg", searchArgs(query)...)
	cmd.Dir = t.repoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return fmt.Sprintf("No matches found for %q", query)
		}
		return fmt.Sprintf("Error searching: %v", err)
	}
	return t.capped(string(out))
}

// searchArgs builds the rg argv. The terminator before the query keeps a
// leading dash from being read as a flag.
func searchArgs(query string) []string {
	return []string{
		"--glob", "!dist",
		"--ignore-file", ".gitignore",
		"-C", "2",
		"-n",
		"--max-count", "10",
		"--max-columns", "200",
		"--",
		query,
	}
}

func (t *toolbox) capped(out string) string {
	if t.outputCap > 0 && len(out) > t.outputCap {
		return out[:t.outputCap] + "\n\n[... output truncated due to size limit ...]"
	}
	return out
}
