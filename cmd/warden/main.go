package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/groupwarden/groupwarden/lockmod/command"
	"github.com/groupwarden/groupwarden/lockmod/engine"
	"github.com/groupwarden/groupwarden/lockmod/policystore"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "chat group lock enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "bridge-host",
			Usage:   "websocket URL of the platform gateway",
			Value:   "ws://localhost:8090",
			EnvVars: []string{"WARDEN_BRIDGE_HOST"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "session-file",
			Usage:    "path to the platform session credential (JSON)",
			Required: true,
			EnvVars:  []string{"WARDEN_SESSION_FILE"},
		},
		&cli.StringFlag{
			Name:    "admin-id",
			Usage:   "member id allowed to issue commands",
			EnvVars: []string{"WARDEN_ADMIN_ID"},
		},
		&cli.StringFlag{
			Name:    "admin-id-file",
			Usage:   "file containing the admin member id; overrides --admin-id",
			EnvVars: []string{"WARDEN_ADMIN_ID_FILE"},
		},
		&cli.StringFlag{
			Name:    "snapshot-path",
			Usage:   "local file for policy snapshots (when redis is not configured)",
			Value:   "data/warden/policy.json",
			EnvVars: []string{"WARDEN_SNAPSHOT_PATH"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; enables shared counters, dedupe cache and snapshot storage",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "parallelism",
			Usage:   "max occurrences handled concurrently",
			Value:   16,
			EnvVars: []string{"WARDEN_PARALLELISM"},
		},
		&cli.DurationFlag{
			Name:    "flush-interval",
			Usage:   "how often the policy snapshot is persisted, in addition to after every change",
			Value:   policystore.DefaultFlushInterval,
			EnvVars: []string{"WARDEN_FLUSH_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "command-marker",
			Usage:   "optional prefix on command verbs",
			Value:   command.DefaultMarker,
			EnvVars: []string{"WARDEN_COMMAND_MARKER"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook, for abandoned correction notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.Float64Flag{
			Name:    "bridge-rate-limit",
			Usage:   "max outbound requests per second to the gateway (0 for unlimited)",
			EnvVars: []string{"WARDEN_BRIDGE_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "quota-corrections-hour",
			Usage:   "max reverts per thread per hour of changes with no attributable actor (0 disables)",
			Value:   engine.DefaultQuotaCorrectionsHour,
			EnvVars: []string{"WARDEN_QUOTA_CORRECTIONS_HOUR"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, err := configLogger(cctx.String("log-level"))
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		shutdownTracing, err := setupTracing(ctx)
		if err != nil {
			return err
		}
		defer shutdownTracing()

		session, err := loadSession(cctx.String("session-file"))
		if err != nil {
			return err
		}
		adminID, err := loadAdminID(cctx.String("admin-id"), cctx.String("admin-id-file"))
		if err != nil {
			return err
		}

		srv, err := NewServer(Config{
			BridgeHost:           cctx.String("bridge-host"),
			Session:              session,
			AdminID:              adminID,
			SnapshotPath:         cctx.String("snapshot-path"),
			RedisURL:             cctx.String("redis-url"),
			Parallelism:          cctx.Int("parallelism"),
			FlushInterval:        cctx.Duration("flush-interval"),
			CommandMarker:        cctx.String("command-marker"),
			SlackWebhookURL:      cctx.String("slack-webhook-url"),
			BridgeRateLimit:      cctx.Float64("bridge-rate-limit"),
			QuotaCorrectionsHour: cctx.Int("quota-corrections-hour"),
			Logger:               logger,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run warden service: %w", err)
		}
		return nil
	},
}

func configLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, &ConfigError{Field: "log-level", Err: err}
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}
