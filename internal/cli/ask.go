package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"reportqa/internal/report"
)

// askInput allows tests to override stdin for interactive questions.
var askInput io.Reader = os.Stdin

func runAsk(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		specPath := flags.String("spec", "", "Path to config file (default: search for .reportqa/config.yml)")
		pdfPath := flags.String("pdf", "", "PDF document to question")
		if err := flags.Parse(args); err != nil {
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if strings.TrimSpace(*pdfPath) == "" {
			fmt.Fprintln(stderr, "Missing --pdf")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		ctx, stop := signalContext()
		defer stop()

		rt, err := newRuntime(ctx, *specPath, false, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}
		defer rt.Close()

		if err := rt.submit(ctx, *pdfPath); err != nil {
			fmt.Fprintf(stderr, "An error occurred: %v\n", err)
			return ExitError
		}

		if flags.NArg() > 0 {
			if err := answerOne(ctx, rt, strings.Join(flags.Args(), " "), stdout); err != nil {
				fmt.Fprintf(stderr, "Error answering the question: %v\n", err)
				return ExitError
			}
			return ExitOK
		}
		return askLoop(ctx, rt, askInput, stdout, stderr)
	}
}

// askLoop answers one question per input line until EOF or cancellation.
func askLoop(ctx context.Context, rt *appRuntime, in io.Reader, stdout, stderr io.Writer) int {
	interactive := false
	if file, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(file.Fd()))
	}
	status := rt.session.Status()
	if interactive {
		fmt.Fprintf(stdout, "Currently loaded PDF: %s (%d pages). Empty line or Ctrl-D to quit.\n", status.Document, status.Pages)
	}

	scanner := bufio.NewScanner(in)
	failed := false
	for {
		if interactive {
			fmt.Fprint(stdout, "Question: ")
		}
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			if interactive {
				break
			}
			continue
		}
		if err := answerOne(ctx, rt, text, stdout); err != nil {
			if errors.Is(err, context.Canceled) {
				return ExitError
			}
			fmt.Fprintf(stderr, "Error answering the question: %v\n", err)
			failed = true
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "read questions: %v\n", err)
		return ExitError
	}
	if failed {
		return ExitError
	}
	return ExitOK
}

func answerOne(ctx context.Context, rt *appRuntime, text string, stdout io.Writer) error {
	res, err := rt.session.AnswerOne(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Answer: %s\n", res.Text)
	fmt.Fprintf(stdout, "Relevant pages: %s\n", report.FormatPages(res.SourcePages))
	return nil
}

