package question

import (
	"fmt"
	"strings"
)

// Issue is a problem with the question file. Row is the 1-based data row,
// or 0 when the problem concerns the whole file.
type Issue struct {
	Row     int
	Message string
}

// ValidationError aggregates question file issues.
type ValidationError struct {
	Issues []Issue
}

func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "invalid questions file"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		if issue.Row > 0 {
			lines = append(lines, fmt.Sprintf("row %d: %s", issue.Row, issue.Message))
			continue
		}
		lines = append(lines, issue.Message)
	}
	return "invalid questions file: " + strings.Join(lines, "; ")
}

type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(row int, message string) {
	c.issues = append(c.issues, Issue{Row: row, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}
