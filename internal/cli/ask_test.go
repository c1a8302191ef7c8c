package cli

import (
	"bytes"
	"strings"
	"testing"

	"reportqa/internal/engine/enginetest"
)

// TestAskCommandSingleQuestion verifies a question on the command line is sent unaugmented.
func TestAskCommandSingleQuestion(t *testing.T) {
	stub := stubEngines(t, enginetest.Fixed("It is an annual sustainability report.", 1, 2))
	_, specPath, pdfPath, _ := writeProject(t)

	var out, errOut bytes.Buffer
	code := Run([]string{"ask", "--spec", specPath, "--pdf", pdfPath, "What", "is", "this", "document?"}, &out, &errOut)
	if code != ExitOK {
		t.Fatalf("expected exit %d, got %d: %s", ExitOK, code, errOut.String())
	}
	if !strings.Contains(out.String(), "Answer: It is an annual sustainability report.") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !strings.Contains(out.String(), "Relevant pages: [1, 2]") {
		t.Fatalf("expected pages in output %q", out.String())
	}
	if queries := stub.engines[0].Queries(); len(queries) != 1 || queries[0] != "What is this document?" {
		t.Fatalf("unexpected queries %v", queries)
	}
}

// TestAskCommandReadsLines verifies piped input answers one question per non-empty line.
func TestAskCommandReadsLines(t *testing.T) {
	stub := stubEngines(t, enginetest.Fixed("Yes."))
	_, specPath, pdfPath, _ := writeProject(t)
	original := askInput
	askInput = strings.NewReader("First question?\n\n  Second question?  \n")
	t.Cleanup(func() { askInput = original })

	var out, errOut bytes.Buffer
	if code := Run([]string{"ask", "--spec", specPath, "--pdf", pdfPath}, &out, &errOut); code != ExitOK {
		t.Fatalf("expected exit %d, got %d: %s", ExitOK, code, errOut.String())
	}
	if got := strings.Count(out.String(), "Answer: Yes."); got != 2 {
		t.Fatalf("expected two answers, got %d in %q", got, out.String())
	}
	queries := stub.engines[0].Queries()
	if len(queries) != 2 || queries[1] != "Second question?" {
		t.Fatalf("unexpected queries %v", queries)
	}
}

func TestAskCommandRequiresPDF(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"ask", "hello"}, &out, &errOut); code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
	if !strings.Contains(errOut.String(), "Missing --pdf") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}
