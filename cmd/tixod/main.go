package main

import (
	"context"
	"fmt"
	"log/slog"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/tixo-social/tixo/assistant"
	"github.com/tixo-social/tixo/automod/trust"
	"github.com/tixo-social/tixo/chat"
	"github.com/tixo-social/tixo/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
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
		Name:    "tixod",
		Usage:   "tixo safety core: moderation, publishing, and chat daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL, for trust state, counters, flags, and cache: redis://<user>:<pass>@<hostname>:6379/<db>",
			EnvVars: []string{"TIXO_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for content and conversations (and trust state, if redis is not configured): sqlite://<path> or postgres://...",
			EnvVars: []string{"TIXO_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"TIXO_MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit a trace span for every database statement",
			EnvVars: []string{"TIXO_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"TIXO_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the tixod API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3900",
			EnvVars: []string{"TIXO_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3901",
			EnvVars: []string{"TIXO_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "policy-file",
			Usage:   "moderation lexicon (JSON or YAML); the built-in lexicon is used if not set",
			EnvVars: []string{"TIXO_POLICY_FILE"},
		},
		&cli.IntFlag{
			Name:    "suspend-threshold",
			Usage:   "number of violations at which an account is suspended",
			Value:   trust.DefaultSuspendThreshold,
			EnvVars: []string{"TIXO_SUSPEND_THRESHOLD"},
		},
		&cli.DurationFlag{
			Name:    "dedupe-window",
			Usage:   "if set, identical rejected submissions from the same account within this window only count once",
			EnvVars: []string{"TIXO_DEDUPE_WINDOW"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook, for account suspension notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "gemini-api-key",
			Usage:   "API key for the chat assistant; assistant replies fall back to an apology if not set",
			EnvVars: []string{"TIXO_GEMINI_API_KEY", "GEMINI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "gemini-model",
			Value:   assistant.DefaultGeminiModel,
			EnvVars: []string{"TIXO_GEMINI_MODEL"},
		},
		&cli.Float64Flag{
			Name:    "gemini-rate-limit",
			Usage:   "max assistant requests per second, across all conversations",
			Value:   10,
			EnvVars: []string{"TIXO_GEMINI_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "assistant-id",
			Usage:   "reserved participant id which denotes the assistant",
			Value:   chat.DefaultAssistantID,
			EnvVars: []string{"TIXO_ASSISTANT_ID"},
		},
		&cli.DurationFlag{
			Name:    "assistant-timeout",
			Value:   chat.DefaultAssistantTimeout,
			EnvVars: []string{"TIXO_ASSISTANT_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "assistant-history",
			Usage:   "number of prior messages passed to the assistant",
			Value:   chat.DefaultHistoryLimit,
			EnvVars: []string{"TIXO_ASSISTANT_HISTORY"},
		},
		&cli.IntFlag{
			Name:    "send-rate-limit",
			Usage:   "max chat messages per minute from one sender (0 for no limit)",
			Value:   30,
			EnvVars: []string{"TIXO_SEND_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "conversations-file",
			Usage:   "JSON file of conversations to create at startup",
			EnvVars: []string{"TIXO_CONVERSATIONS_FILE"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := cliutil.ConfigLogger(cctx.String("log-level"), os.Stdout)
		shutdownOTEL := configOTEL("tixod")
		defer shutdownOTEL()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := NewServer(ctx, Config{
			Logger:            logger,
			RedisURL:          cctx.String("redis-url"),
			DatabaseURL:       cctx.String("database-url"),
			MaxDBConnections:  cctx.Int("max-db-connections"),
			PolicyFile:        cctx.String("policy-file"),
			SuspendThreshold:  cctx.Int("suspend-threshold"),
			DedupeWindow:      cctx.Duration("dedupe-window"),
			SlackWebhookURL:   cctx.String("slack-webhook-url"),
			GeminiAPIKey:      cctx.String("gemini-api-key"),
			GeminiModel:       cctx.String("gemini-model"),
			GeminiRateLimit:   cctx.Float64("gemini-rate-limit"),
			AssistantID:       cctx.String("assistant-id"),
			AssistantTimeout:  cctx.Duration("assistant-timeout"),
			HistoryLimit:      cctx.Int("assistant-history"),
			SendRateLimit:     cctx.Int("send-rate-limit"),
			DBTracing:         cctx.Bool("db-tracing"),
			MetricsRegisterer: prometheus.DefaultRegisterer,
			ConversationsFile: cctx.String("conversations-file"),
			Bind:              cctx.String("bind"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		return srv.Run(ctx, cctx.String("metrics-listen"))
	},
}
