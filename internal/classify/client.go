// Package classify sends unassigned transactions to an external classifier
// and applies accepted suggestions through the assignment service.
package classify

import (
	"context"
	"strings"
)

// Client defines the interface for classifier backends.
type Client interface {
	Classify(ctx context.Context, prompt string) (Response, error)
}

// Response contains a backend's raw suggestion: a category name from the
// offered list and a confidence in [0, 1].
type Response struct {
	Category   string
	Confidence float64
}

// cleanMarkdownWrapper strips a markdown code fence some models wrap JSON
// responses in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
