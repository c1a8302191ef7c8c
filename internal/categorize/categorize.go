package categorize

import (
	"fmt"
	"regexp"
	"strings"
)

// Label is the ternary classification of a free-text answer.
type Label string

const (
	Yes      Label = "Yes"
	No       Label = "No"
	NotGiven Label = "Not Given"
)

var (
	yesPattern = regexp.MustCompile(`(?i)\byes\b`)
	noPattern  = regexp.MustCompile(`(?i)\bno\b`)
)

// Categorize maps an answer to a label. "yes" is checked before "no".
func Categorize(text string) Label {
	if yesPattern.MatchString(text) {
		return Yes
	}
	if noPattern.MatchString(text) {
		return No
	}
	return NotGiven
}

// ParseLabel parses a serialized label.
func ParseLabel(value string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return Yes, nil
	case "no":
		return No, nil
	case "not given", "notgiven", "not_given":
		return NotGiven, nil
	default:
		return "", fmt.Errorf("unknown label %q", value)
	}
}

// Counts tallies labels across a set of answers.
type Counts struct {
	Yes      int `json:"yes"`
	No       int `json:"no"`
	NotGiven int `json:"not_given"`
}

// Add records one label.
func (c *Counts) Add(label Label) {
	switch label {
	case Yes:
		c.Yes++
	case No:
		c.No++
	default:
		c.NotGiven++
	}
}

// Total returns the number of labels recorded.
func (c Counts) Total() int {
	return c.Yes + c.No + c.NotGiven
}
