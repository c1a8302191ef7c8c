package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"reportqa/internal/question"
	"reportqa/internal/ratelimit"
	"reportqa/internal/report"
	"reportqa/internal/runner"
	"reportqa/internal/ui/live"
)

// startLive is a test seam for the live UI.
var startLive = func(stdout io.Writer, noColor bool) liveUI {
	return live.Start(stdout, live.Options{NoColor: noColor})
}

// liveUI is the part of live.Controller batch needs.
type liveUI interface {
	runner.RunObserver
	Close()
	Wait()
}

func runBatch(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		specPath := flags.String("spec", "", "Path to config file (default: search for .reportqa/config.yml)")
		pdfPath := flags.String("pdf", "", "PDF document to question")
		outputDir := flags.String("output-dir", "", "Override the results folder")
		workers := flags.Int("workers", 0, "Questions answered concurrently (default: batch.workers)")
		onError := flags.String("on-error", "", "record or abort (default: batch.failure_policy)")
		uiMode := flags.String("ui", uiAuto, "Progress display: auto, live or plain")
		verbose := flags.Bool("verbose", false, "Print every question event")
		noColor := flags.Bool("no-color", false, "Disable ANSI colours")
		archive := flags.Bool("archive", false, "Save the report to the archive")
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
		if flags.NArg() != 1 {
			fmt.Fprintln(stderr, "Expected exactly one questions CSV")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if *workers < 0 {
			fmt.Fprintln(stderr, "--workers must be >= 1")
			return ExitUsage
		}
		decision, err := resolveUIMode(*uiMode, *verbose, *noColor, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitUsage
		}
		if decision.warning != "" {
			fmt.Fprintln(stderr, decision.warning)
		}

		set, err := question.LoadFile(flags.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Invalid questions file:\n%v\n", err)
			return ExitError
		}

		ctx, stop := signalContext()
		defer stop()

		rt, err := newRuntime(ctx, *specPath, *archive, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}
		defer rt.Close()
		cfg := rt.loaded.cfg

		policyName := cfg.Batch.FailurePolicy
		if *onError != "" {
			policyName = *onError
		}
		policy, err := runner.ParseFailurePolicy(policyName)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitUsage
		}
		workerCount := cfg.Batch.Workers
		if *workers > 0 {
			workerCount = *workers
		}
		limiter, err := ratelimit.BuildLimiter(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Rate limiter: %v\n", err)
			return ExitError
		}
		root := rt.loaded.resolve(cfg.Output.Dir)
		if *outputDir != "" {
			root = *outputDir
		}

		if err := rt.submit(ctx, *pdfPath); err != nil {
			fmt.Fprintf(stderr, "An error occurred: %v\n", err)
			return ExitError
		}
		status := rt.session.Status()
		fmt.Fprintf(stdout, "Loaded %s (%d pages), %d questions\n", status.Document, status.Pages, set.Len())

		params := runner.BatchParams{
			Workers:         workerCount,
			FailurePolicy:   policy,
			Limiter:         limiter,
			MaxOutputTokens: ratelimit.MaxOutputTokens(cfg),
			Verbose:         *verbose,
			VerboseWriter:   stdout,
			NoColor:         decision.noColor,
		}
		var ui liveUI
		if decision.useLive {
			ui = startLive(stdout, decision.noColor)
			params.Observer = ui
		}
		rep, err := rt.session.RunBatch(ctx, set, params)
		if ui != nil {
			ui.Close()
			ui.Wait()
		}
		if err != nil {
			fmt.Fprintf(stderr, "Batch failed: %v\n", err)
			return ExitError
		}

		paths, err := runner.WriteRunOutputs(ctx, rep, root)
		if err != nil {
			fmt.Fprintf(stderr, "Write outputs: %v\n", err)
			return ExitError
		}
		if rt.archive != nil {
			if _, err := rt.archive.SaveReport(ctx, rep); err != nil {
				rt.logger.Warn("archive report", zap.String("run_id", rep.RunID), zap.Error(err))
				fmt.Fprintf(stderr, "Results were not archived: %v\n", err)
			}
		}

		fmt.Fprintf(stdout, "Run %s completed\n", rep.RunID)
		printSummary(stdout, rep.Summary)
		fmt.Fprintf(stdout, "Results: %s\n", paths.ResultsPath())
		fmt.Fprintf(stdout, "CSV: %s\n", paths.CSVPath())
		fmt.Fprintf(stdout, "Report: %s\n", paths.ReportPath())
		return ExitOK
	}
}

func printSummary(w io.Writer, summary report.Summary) {
	fmt.Fprintf(w, "Yes: %d  No: %d  Not Given: %d  Failed: %d  (%d questions, %.1fs)\n",
		summary.Labels.Yes, summary.Labels.No, summary.Labels.NotGiven, summary.Failed,
		summary.Total, summary.DurationSeconds)
}
