// Package promptlib holds the fixed system prompt sent to the LLM Gateway
// and a deterministic renderer for the per-call user message.
package promptlib

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// SystemPrompt instructs the model to act as a code reviewer and security
// auditor and mandates the response block grammar the Response Parser
// expects. Its wording is a fixed constant: changing it changes what the
// Response Parser must be able to read back out, so it does not vary by
// configuration.
const SystemPrompt = `You are an expert code reviewer and security auditor. Review the supplied unified diff and report only issues that matter: critical bugs, security vulnerabilities, correctness problems, and significant gaps in code quality, testability, or documentation. Do not comment on style preferences or restate what the diff already makes obvious.

If you find nothing worth flagging, reply with exactly this sentence and nothing else:
No significant issues found. Good job!

Otherwise, report each issue as a block in the following format, separating blocks with a line containing only ---:

**Location**: <path>:<line>
**Issue Type**: <short category>
**Description**: <what is wrong and why it matters>
**Severity**: <Critical|High|Medium|Low>
**Suggested Change**: <concrete fix, or code if useful>

Use backticks around the path if you like; they will be stripped. Every block must include at least a Location path and a Description. Do not wrap your reply in a code fence and do not add any commentary before or after the blocks.`

var userTemplate = prompts.NewPromptTemplate(
	"Review the following diff from pull request #{{.number}} (\"{{.title}}\"):\n\n```diff\n{{.diff}}\n```",
	[]string{"number", "title", "diff"},
)

// RenderUserMessage deterministically builds the single user message sent
// alongside SystemPrompt, fencing the diff as a diff code block.
func RenderUserMessage(number int, title, diff string) (string, error) {
	diff = strings.TrimRight(diff, "\n")
	out, err := userTemplate.Format(map[string]any{
		"number": fmt.Sprintf("%d", number),
		"title":  title,
		"diff":   diff,
	})
	if err != nil {
		return "", fmt.Errorf("render user message: %w", err)
	}
	return out, nil
}
