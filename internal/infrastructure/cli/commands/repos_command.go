package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/gitscope/internal/app"
	"github.com/doeshing/gitscope/internal/domain"
)

const msgNoStoredRepos = "No repositories stored yet."

// NewReposCommand creates the repos command
func NewReposCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List stored repositories and their explorations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listStoredRepositories(cmd.OutOrStdout(), container)
		},
	}
}

// listStoredRepositories prints one line per stored repository
func listStoredRepositories(out io.Writer, container *app.Container) error {
	summaries, err := container.Store.ListRepositories()
	if err != nil {
		return fmt.Errorf("failed to list stored repositories: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, msgNoStoredRepos)
		return nil
	}

	for _, summary := range summaries {
		fmt.Fprintf(out, "%s | snapshot: %s | modes: %s | explored: %s\n",
			summary.Key.String(),
			yesNo(summary.HasSnapshot),
			formatModes(summary.ExploredModes),
			formatExploredAge(summary.LastExploredMS))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatModes(modes []domain.ExplorationMode) string {
	if len(modes) == 0 {
		return "-"
	}
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

func formatExploredAge(timestampMS int64) string {
	if timestampMS == 0 {
		return "never"
	}
	return humanize.Time(time.UnixMilli(timestampMS))
}
