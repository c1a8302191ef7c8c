package cli

import (
	"fmt"
	"io"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     func(args []string, stdout, stderr io.Writer) int
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return ExitUsage
	}
	if isHelpArg(args[0]) {
		printUsage(stdout)
		return ExitOK
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return ExitUsage
	}

	return cmd.Run(args[1:], stdout, stderr)
}

func findCommand(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  reportqa <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintln(w, "\nUse \"reportqa <command> --help\" for more information.")
}

func printCommandUsage(cmd *Command, w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range cmd.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if cmd.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", cmd.Summary)
	}
}

func runNotImplemented(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		fmt.Fprintf(stderr, "reportqa %s is not implemented yet\n", cmd.Name)
		return ExitError
	}
}

func command(name, summary string, usage []string, runner func(cmd *Command) func(args []string, stdout, stderr io.Writer) int) *Command {
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
	}
	if runner == nil {
		cmd.Run = runNotImplemented(cmd)
	} else {
		cmd.Run = runner(cmd)
	}
	return cmd
}

var commands = []*Command{
	command("init", "Scaffold .reportqa/config.yml", []string{
		"reportqa init [--spec <path>]",
	}, runInit),
	command("validate", "Validate .reportqa/config.yml", []string{
		"reportqa validate [--spec <path>]",
	}, runValidate),
	command("models", "List supported embedding and language models", []string{
		"reportqa models",
	}, runModels),
	command("ask", "Answer questions about a PDF", []string{
		"reportqa ask [--spec <path>] --pdf <file> [question...]",
	}, runAsk),
	command("batch", "Answer a CSV of questions about a PDF", []string{
		"reportqa batch [--spec <path>] --pdf <file> [--output-dir <dir>] [--workers N] [--on-error record|abort]",
		"               [--ui auto|live|plain] [--verbose] [--no-color] [--archive] <questions.csv>",
	}, runBatch),
	command("serve", "Run the web UI", []string{
		"reportqa serve [--spec <path>] [--addr <host:port>]",
	}, runServe),
	command("history", "List archived runs or print one", []string{
		"reportqa history [--spec <path>] [--limit N] [--csv] [run-id]",
	}, runHistory),
	command("report", "Summarize or re-render a run from the results folder", []string{
		"reportqa report [--spec <path>] [--output-dir <dir>] [--html] [run-id|latest]",
	}, runReport),
}
