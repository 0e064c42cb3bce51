// Package main is the entry point for reviewerd, the multi-tenant
// webhook-driven AI code review service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/consts"
	"github.com/aireviewer/reviewerd/internal/aireviewer"
	"github.com/aireviewer/reviewerd/internal/budget"
	"github.com/aireviewer/reviewerd/internal/check"
	"github.com/aireviewer/reviewerd/internal/commands"
	"github.com/aireviewer/reviewerd/internal/config"
	"github.com/aireviewer/reviewerd/internal/database"
	"github.com/aireviewer/reviewerd/internal/ghclient"
	"github.com/aireviewer/reviewerd/internal/reviewconfig"
	"github.com/aireviewer/reviewerd/internal/reviewengine"
	"github.com/aireviewer/reviewerd/internal/scheduler"
	"github.com/aireviewer/reviewerd/internal/server"
	"github.com/aireviewer/reviewerd/internal/store"
	"github.com/aireviewer/reviewerd/internal/webhookapi"
	"github.com/aireviewer/reviewerd/pkg/logger"
	"github.com/aireviewer/reviewerd/pkg/telemetry"
)

// Build information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reviewerd",
	Short: "reviewerd - multi-tenant AI code review webhook service",
	Long: `reviewerd reacts to pull-request events from a code-hosting platform by
scheduling asynchronous AI-assisted code reviews and reporting their outcomes
back as review comments and commit status checks.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reviewerd server",
	Long: `Start the HTTP server that accepts webhook deliveries and runs the
review pipeline.

On first run, use --check to validate your environment before starting:
  reviewerd serve --check`,
	Run: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reviewerd %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
	serveCmd.Flags().Bool("check", false, "validate configuration and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	path := configPath
	if path == "" {
		path = "./config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	checkResult := check.Run(cfg)
	if explicitCheck, _ := cmd.Flags().GetBool("check"); explicitCheck {
		check.Print(checkResult)
		if !checkResult.Success {
			os.Exit(1)
		}
		fmt.Println("Environment check completed successfully")
		return
	}
	if !checkResult.Success {
		check.Print(checkResult)
		os.Exit(1)
	}
	for _, w := range checkResult.Warnings {
		fmt.Fprintf(os.Stderr, "[WARNING] %s\n", w)
	}

	consts.SetStartedAt(time.Now())

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting reviewerd", zap.String("version", Version))

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()
	metrics := telemetry.GetMetrics()

	if err := database.Init(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	dataStore := store.NewStore(database.Get())

	hosting, err := ghclient.New(cfg.GitHubApp.AppID, cfg.GitHubApp.PrivateKeyPEM)
	if err != nil {
		logger.Fatal("Failed to create hosting client", zap.Error(err))
	}

	ai := aireviewer.New(cfg.AI.APIKey, cfg.AI.MaxTokensPerReview)
	budgetTracker := budget.New(dataStore)
	configLoader := reviewconfig.NewLoader(dataStore.Repository(), hosting)
	rates := budget.Rates{
		InputPerMillionCents:  cfg.Cost.InputPerMillionCents,
		OutputPerMillionCents: cfg.Cost.OutputPerMillionCents,
	}

	engine := reviewengine.New(dataStore, hosting, ai, budgetTracker, configLoader, rates,
		cfg.Review.MaxDiffSizeBytes, cfg.Review.EnableLineComments, metrics)

	parser := commands.NewParser(cfg.Review.BotTriggers)
	sched := scheduler.New(0, metrics)

	if err := sched.AddCronJob("@hourly", func() {
		evicted := hosting.SweepStaleTokens()
		if evicted > 0 {
			logger.Info("swept stale installation tokens", zap.Int("evicted", evicted))
		}
	}); err != nil {
		logger.Warn("failed to register token-cache sweep cron job", zap.Error(err))
	}

	dispatcher := webhookapi.New(dataStore, sched, parser, hosting, cfg.GitHubApp.WebhookSecret, cfg.Review.ReviewDebounceSeconds)

	handler := schedulerHandler(engine, dispatcher, configLoader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx, handler)

	srv := server.New(cfg, dispatcher)
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("reviewerd server is running", zap.String("address", cfg.Server.Address()))

	srv.WaitForShutdown()
	cancel()

	logger.Info("reviewerd stopped")
}

// schedulerHandler routes a dispatched Job to the ReviewEngine or the
// comment-command path, by the Scheduler task name the EventDispatcher
// submitted it under.
func schedulerHandler(engine *reviewengine.Engine, dispatcher *webhookapi.Dispatcher, configLoader *reviewconfig.Loader) scheduler.Handler {
	return func(job *scheduler.Job) error {
		ctx := context.Background()
		switch job.TaskName {
		case "review_pull_request":
			task, ok := job.Payload.(reviewengine.Task)
			if !ok {
				return fmt.Errorf("review_pull_request job %s carries unexpected payload type %T", job.ID, job.Payload)
			}
			return engine.Process(ctx, task)
		case "process_comment_command":
			task, ok := job.Payload.(webhookapi.CommentTask)
			if !ok {
				return fmt.Errorf("process_comment_command job %s carries unexpected payload type %T", job.ID, job.Payload)
			}
			return dispatcher.ProcessCommentCommand(ctx, engine, configLoader, task)
		default:
			logger.Warn("scheduler dispatched unknown task", zap.String("task_name", job.TaskName), zap.String("job_id", job.ID))
			return nil
		}
	}
}
