package report

import (
	"fmt"
	"strings"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
)

const noRecommendations = "No recommendations available."

// Draft lays out analysis results as Markdown without calling a backend.
// The output depends only on its arguments.
func Draft(result *analysis.Result, title string) string {
	if title == "" {
		title = DefaultTitle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("## Executive Summary\n")
	b.WriteString("This is an AI-assisted compliance report based on the analysis of your application. " +
		"The following sections provide insights into the application's alignment with the **Dawn Methodology**.\n\n")

	if result == nil {
		return b.String()
	}

	for _, pr := range result.Principles {
		fmt.Fprintf(&b, "## %s Analysis\n", pr.Principle)
		b.WriteString(joinEntries(pr.Analyses, "No analysis available."))
		b.WriteString("\n\n")

		fmt.Fprintf(&b, "### %s Recommendations\n", pr.Principle)
		b.WriteString(joinEntries(pr.Recommendations, noRecommendations))
		b.WriteString("\n\n")
	}

	if len(result.Failures) > 0 {
		b.WriteString("## Incomplete Analysis\n")
		for _, f := range result.Failures {
			fmt.Fprintf(&b, "- %s, snippet %d, %s: %s\n", f.Principle, f.SnippetIndex+1, f.Kind, f.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func joinEntries(entries []string, empty string) string {
	var kept []string
	for _, e := range entries {
		if s := strings.TrimSpace(e); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return empty
	}
	return strings.Join(kept, "\n\n")
}
