package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// runReport prints a run from the results folder and can rebuild its HTML.
func runReport(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		specPath := flags.String("spec", "", "Path to config file (default: search for .reportqa/config.yml)")
		outputDir := flags.String("output-dir", "", "Override the results folder")
		rebuild := flags.Bool("html", false, "Rewrite report.html from results.json")
		if err := flags.Parse(args); err != nil {
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if flags.NArg() > 1 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		ref := runner.LatestRef
		if flags.NArg() == 1 {
			ref = flags.Arg(0)
		}

		root := *outputDir
		if root == "" {
			loaded, err := loadConfig(*specPath)
			if err != nil {
				fmt.Fprintf(stderr, "load config: %v\n", err)
				return ExitError
			}
			root = loaded.resolve(loaded.cfg.Output.Dir)
		}

		rep, paths, err := runner.ResolveRun(root, ref)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		if *rebuild {
			var buf bytes.Buffer
			if err := report.Render(context.Background(), &buf, rep); err != nil {
				fmt.Fprintf(stderr, "render report: %v\n", err)
				return ExitError
			}
			if err := os.WriteFile(paths.ReportPath(), buf.Bytes(), 0o644); err != nil {
				fmt.Fprintf(stderr, "write report: %v\n", err)
				return ExitError
			}
			fmt.Fprintf(stdout, "Wrote %s\n", paths.ReportPath())
		}
		printRun(stdout, rep)
		return ExitOK
	}
}
