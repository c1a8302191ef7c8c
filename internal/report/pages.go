package report

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPages renders a page list as a bracketed literal such as "[3, 3, null]".
func FormatPages(pages []*int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, page := range pages {
		if i > 0 {
			b.WriteString(", ")
		}
		if page == nil {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.Itoa(*page))
	}
	b.WriteByte(']')
	return b.String()
}

// ParsePages parses a page list literal. Missing pages may be written as
// null, None or left empty between commas.
func ParsePages(value string) ([]*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("page list %q is not bracketed", value)
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return []*int{}, nil
	}
	parts := strings.Split(inner, ",")
	pages := make([]*int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "", "null", "None", "nan", "NaN":
			pages = append(pages, nil)
			continue
		}
		page, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("page list %q: invalid page %q", value, part)
		}
		pages = append(pages, &page)
	}
	return pages, nil
}
