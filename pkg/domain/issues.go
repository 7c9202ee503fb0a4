package domain

import (
	"fmt"
	"strings"
)

// IssueCodeCustom tags business rule issues raised by the validation stage.
const IssueCodeCustom = "custom"

// Issue reports a business rule violation against a field path.
// An empty Path refers to the entity as a whole.
type Issue struct {
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// NewIssue builds a custom issue for the given field.
func NewIssue(field, message string) Issue {
	issue := Issue{Code: IssueCodeCustom, Message: message}
	if field != "" {
		issue.Path = []string{field}
	}
	return issue
}

// Field returns the issue path joined with underscores.
func (i Issue) Field() string { return strings.Join(i.Path, "_") }

// ValidationError is returned when a save or delete is blocked by issues.
type ValidationError struct {
	Entity EntityType
	ID     string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		issue := e.Issues[0]
		if field := issue.Field(); field != "" {
			return fmt.Sprintf("%s validation failed: %s: %s", e.Entity, field, issue.Message)
		}
		return fmt.Sprintf("%s validation failed: %s", e.Entity, issue.Message)
	}
	return fmt.Sprintf("%s validation failed: %d issues", e.Entity, len(e.Issues))
}
