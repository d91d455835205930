package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"matchqueue/config"
	"matchqueue/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg config.Config

	flagEnvFile       string
	flagVerbose       bool
	flagDays          int
	flagWorkers       int
	flagWithWorkers   bool
	flagWithScheduler bool
	flagScanOnStart   bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentPreRunE = initConfig

	scanCmd.Flags().IntVar(&flagDays, "days", 0, "days ahead to scan (overrides SCAN_DAYS)")
	workerCmd.Flags().IntVar(&flagWorkers, "count", 0, "number of worker loops (overrides WORKER_COUNT)")
	serveCmd.Flags().BoolVar(&flagWithWorkers, "workers", true, "run worker loops in the same process")
	serveCmd.Flags().BoolVar(&flagWithScheduler, "scheduler", false, "run the scan scheduler in the same process")
	schedulerCmd.Flags().BoolVar(&flagScanOnStart, "scan-on-start", true, "scan once as soon as the scheduler starts")

	rootCmd.AddCommand(scanCmd, workerCmd, serveCmd, schedulerCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("matchqueue failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "matchqueue",
	Short:         "Discover upcoming football fixtures and process them through a task queue",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "run one fixture scan and exit",
	RunE:  doScan,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "consume the task queue until interrupted",
	RunE:  doWorker,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the HTTP API",
	RunE:  doServe,
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "scan on a schedule and on request from the control channel",
	RunE:  doScheduler,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("matchqueue: %s\n", version)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fmt.Printf("go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:     %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:       %s\n", s.Value)
			}
		}
	},
}

func initConfig(cmd *cobra.Command, _ []string) error {
	var files []string
	if flagEnvFile != "" {
		files = append(files, flagEnvFile)
	}
	var err error
	cfg, err = config.Load(files...)
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if flagVerbose {
		level = slog.LevelDebug
	}
	logging.Setup(level, "matchqueue-"+cmd.Name())

	ctx := logging.ContextAttrs(cmd.Context(), slog.Group("process",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
		slog.String("environment", cfg.Environment),
	))
	cmd.SetContext(ctx)
	return nil
}
