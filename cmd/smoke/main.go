package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/okian/tastebud/internal/smoke"
	"github.com/okian/tastebud/pkg/logger"
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.String("users", "", "Comma separated usernames")
		usersFile  = flag.String("users-file", "", "File with one username per line")
		seed       = flag.Int("seed", 0, "Ghosts to seed first")
		force      = flag.Bool("force", false, "Replace existing ghosts when seeding")
		limit      = flag.Int("limit", smoke.DefaultLimit, "Matches requested per user")
		workers    = flag.Int("workers", runtime.NumCPU(), "Concurrent requests")
		adminKey   = flag.String("admin-key", os.Getenv("TASTEBUD_ADMIN_KEY"), "Admin key")
		timeout    = flag.Duration("timeout", smoke.DefaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the JSON report here")
		verbose    = flag.Bool("verbose", false, "Log every user")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp()
		return
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	names := smoke.SplitUsernames(*users)
	if *usersFile != "" {
		f, err := os.Open(*usersFile)
		if err != nil {
			os.Stderr.WriteString("open users file: " + err.Error() + "\n")
			os.Exit(1)
		}
		more, err := smoke.ReadUsernames(f)
		_ = f.Close()
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		names = append(names, more...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := smoke.Run(ctx, &smoke.Config{
		BaseURL:    *baseURL,
		AdminKey:   *adminKey,
		Usernames:  names,
		SeedCount:  *seed,
		ForceSeed:  *force,
		Limit:      *limit,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
