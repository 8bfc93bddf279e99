package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior endpoint security analyst advising a home user about a file their antivirus flagged. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- risk_level is one of: critical, high, medium, low.
- recommended_action is one of: quarantine, delete, ignore. Prefer quarantine when unsure.
- steps is an ordered array of short, concrete instructions (at most 6).
- Never ask the user to open or execute the flagged file.

Schema (example with empty values):
{
  "summary": "<string>",
  "risk_level": "<critical|high|medium|low>",
  "recommended_action": "<quarantine|delete|ignore>",
  "steps": ["<string>"]
}`
}

// GetUserPrompt builds a compact user message describing the threat.
func GetUserPrompt(t *threats.Threat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signature: %s\n", t.Name)
	fmt.Fprintf(&b, "Category: %s\n", t.Type)
	fmt.Fprintf(&b, "Severity reported by the scanner: %s\n", t.Severity)
	fmt.Fprintf(&b, "File: %s\n", t.FilePath)
	fmt.Fprintf(&b, "Current status: %s\n", t.Status)
	if t.ActionTaken != "" {
		fmt.Fprintf(&b, "Action already taken: %s\n", t.ActionTaken)
	}
	b.WriteString("Respond with the JSON per schema.")
	return b.String()
}
