package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"reportqa/internal/report"
	"reportqa/internal/store"
)

func runHistory(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		specPath := flags.String("spec", "", "Path to config file (default: search for .reportqa/config.yml)")
		limit := flags.Int("limit", store.DefaultListLimit, "Number of runs to list")
		asCSV := flags.Bool("csv", false, "Print the run as qa_results.csv")
		if err := flags.Parse(args); err != nil {
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if flags.NArg() > 1 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		if *asCSV && flags.NArg() == 0 {
			fmt.Fprintln(stderr, "--csv needs a run id")
			return ExitUsage
		}

		loaded, err := loadConfig(*specPath)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return ExitError
		}
		archivePath := loaded.resolve(loaded.cfg.Output.ArchivePath)
		if _, err := os.Stat(archivePath); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(stdout, "No runs archived yet.")
			return ExitOK
		}

		ctx, stop := signalContext()
		defer stop()
		archive, err := store.Open(ctx, archivePath)
		if err != nil {
			fmt.Fprintf(stderr, "open archive: %v\n", err)
			return ExitError
		}
		defer archive.Close()

		if flags.NArg() == 1 {
			rep, err := archive.LoadReport(ctx, flags.Arg(0))
			if err != nil {
				fmt.Fprintln(stderr, err)
				return ExitError
			}
			if *asCSV {
				if err := report.WriteCSV(stdout, rep); err != nil {
					fmt.Fprintf(stderr, "write csv: %v\n", err)
					return ExitError
				}
				return ExitOK
			}
			printRun(stdout, rep)
			return ExitOK
		}

		runs, err := archive.ListRuns(ctx, *limit)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		if len(runs) == 0 {
			fmt.Fprintln(stdout, "No runs archived yet.")
			return ExitOK
		}
		fmt.Fprintf(stdout, "%-32s %-24s %-20s %5s %5s %5s %9s %6s\n", "RUN", "DOCUMENT", "MODEL", "YES", "NO", "N/G", "QUESTIONS", "FAILED")
		for _, run := range runs {
			fmt.Fprintf(stdout, "%-32s %-24s %-20s %5d %5d %5d %9d %6d\n",
				run.RunID, clip(run.Document, 24), clip(run.LanguageModel, 20),
				run.Summary.Labels.Yes, run.Summary.Labels.No, run.Summary.Labels.NotGiven,
				run.Summary.Total, run.Summary.Failed)
		}
		return ExitOK
	}
}

// printRun writes a run header, its summary and one block per question.
func printRun(w io.Writer, rep report.Report) {
	fmt.Fprintf(w, "Run %s\n", rep.RunID)
	fmt.Fprintf(w, "Document: %s\n", rep.Document)
	fmt.Fprintf(w, "Models: %s / %s\n", rep.EmbeddingModel, rep.LanguageModel)
	printSummary(w, rep.Summary)
	for i, row := range rep.Rows {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, row.Question)
		if row.Failed() {
			fmt.Fprintf(w, "   Error: %s\n", row.Error)
			continue
		}
		fmt.Fprintf(w, "   %s | pages %s\n", row.Label, report.FormatPages(row.SourcePages))
		fmt.Fprintf(w, "   %s\n", row.Answer)
	}
}

func clip(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
