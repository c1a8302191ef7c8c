package cli

import (
	"flag"
	"fmt"
	"io"

	"reportqa/internal/config"
	"reportqa/internal/ratelimit"
	"reportqa/internal/runner"
	"reportqa/internal/webui"
)

// serveWeb is a test seam for running the web server.
var serveWeb = webui.Serve

// runServe builds the handler for the serve command.
func runServe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		specPath := fs.String("spec", "", "Path to config file (default: search for .reportqa/config.yml)")
		addr := fs.String("addr", "", "Address to listen on (default: server.addr)")
		noArchive := fs.Bool("no-archive", false, "Do not archive batch results")
		if err := fs.Parse(args); err != nil {
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}

		ctx, stop := signalContext()
		defer stop()

		rt, err := newRuntime(ctx, *specPath, !*noArchive, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}
		defer rt.Close()
		cfg := rt.loaded.cfg

		policy, err := runner.ParseFailurePolicy(cfg.Batch.FailurePolicy)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		limiter, err := ratelimit.BuildLimiter(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Rate limiter: %v\n", err)
			return ExitError
		}
		opts := []webui.Option{webui.WithLogger(rt.logger)}
		if rt.archive != nil {
			opts = append(opts, webui.WithArchive(rt.archive))
		}
		server, err := webui.NewServer(webui.Config{
			Engine:          config.EngineConfig(cfg, ""),
			UploadDir:       rt.loaded.resolve(cfg.Server.UploadDir),
			MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
			Workers:         cfg.Batch.Workers,
			FailurePolicy:   policy,
			Limiter:         limiter,
			MaxOutputTokens: ratelimit.MaxOutputTokens(cfg),
		}, rt.session, opts...)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitError
		}

		listen := cfg.Server.Addr
		if *addr != "" {
			listen = *addr
		}
		fmt.Fprintf(stdout, "Serving Report Analysis Tool at http://%s\n", listen)
		if err := serveWeb(ctx, listen, server.Handler(), rt.logger); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}
