package runner

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"reportqa/internal/report"
)

const verbosePrefix = "[verbose]"

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiGray  = "\x1b[90m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"
)

type verboseStyle int

const (
	styleDefault verboseStyle = iota
	styleRun
	styleMetrics
	styleError
)

// VerboseObserver logs batch progress as "[verbose]" lines.
type VerboseObserver struct {
	w       io.Writer
	palette verbosePalette
	total   int
}

// NewVerboseObserver writes to w, styled only when w is a terminal.
func NewVerboseObserver(w io.Writer, noColor bool) *VerboseObserver {
	return &VerboseObserver{w: w, palette: paletteFor(w, noColor)}
}

func (v *VerboseObserver) OnRunStart(runID, document string, total int) {
	v.total = total
	v.log(styleRun, "Run %s document=%s questions=%d", runID, document, total)
}

func (v *VerboseObserver) OnQuestionEvent(event QuestionEvent) {
	n := event.QuestionIndex + 1
	switch event.Type {
	case QuestionRunning:
		v.log(styleRun, "Question %d/%d %s", n, v.total, truncate(event.QuestionText, 60))
	case QuestionWaitingRateLimit:
		v.log(styleDefault, "Question %d waiting for rate limit retry_after_ms=%d", n, event.RetryAfterMs)
	case QuestionWaitingLimiterError:
		v.log(styleError, "Question %d limiter error=%s", n, event.Error)
	case QuestionAnswered:
		v.log(styleMetrics, "Metrics question=%d label=%s pages=%s tokens=%d wall_time=%s",
			n, event.Label, report.FormatPages(event.SourcePages), event.Tokens, event.WallTime)
	case QuestionFailed:
		v.log(styleError, "Question %d error=%s", n, event.Error)
	case QuestionSkipped:
		v.log(styleDefault, "Question %d skipped", n)
	}
}

func (v *VerboseObserver) OnRunEnd(rep report.Report) {
	s := rep.Summary
	v.log(styleMetrics, "Summary total=%d yes=%d no=%d not_given=%d failed=%d duration=%.1fs",
		s.Total, s.Labels.Yes, s.Labels.No, s.Labels.NotGiven, s.Failed, s.DurationSeconds)
}

func (v *VerboseObserver) log(style verboseStyle, format string, args ...any) {
	if v == nil || v.w == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(v.w, "%s %s\n", v.palette.prefix(verbosePrefix), v.palette.apply(style, line))
}

func truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}

type verbosePalette struct {
	enabled bool
}

func paletteFor(writer io.Writer, noColor bool) verbosePalette {
	if noColor {
		return verbosePalette{}
	}
	return verbosePalette{enabled: ShouldUseStyling(writer)}
}

// ShouldUseStyling reports whether ANSI styling suits writer. It honours
// NO_COLOR, CLICOLOR=0 and TERM=dumb.
func ShouldUseStyling(writer io.Writer) bool {
	if writer == nil {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if strings.EqualFold(os.Getenv("CLICOLOR"), "0") {
		return false
	}
	if fder, ok := writer.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}

func (p verbosePalette) prefix(text string) string {
	if !p.enabled {
		return text
	}
	return ansiDim + ansiGray + text + ansiReset
}

func (p verbosePalette) apply(style verboseStyle, text string) string {
	if !p.enabled {
		return text
	}
	switch style {
	case styleRun:
		return ansiBold + ansiBlue + text + ansiReset
	case styleMetrics:
		return ansiBold + ansiGreen + text + ansiReset
	case styleError:
		return ansiBold + ansiRed + text + ansiReset
	default:
		return text
	}
}
