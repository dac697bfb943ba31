// Command eventcore-worker wires the module's infrastructure together and
// runs a single-process deployment: Postgres-backed recorder, zlib
// compressor with an optional cipher, a notification introspection API, a
// tracking-GC maintainer, and a NATS prompter. It registers no process
// classes and starts no runner; the comment near the end of main shows
// where an embedding deployment starts one.
//
// Grounded in cdc-worker/cmd/worker/main.go's structure — Vault secrets →
// external connections → run loop → signal-handled graceful shutdown —
// generalized from "one fixed WAL-to-NATS pipeline" to "whatever system
// the caller built." A real deployment of this module is expected to
// copy this file and add its own process.Policy implementations and
// system.ProcessClass registrations; what's here is the ambient
// plumbing every such deployment needs regardless of domain.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/cryptcodec"
	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/httpapi"
	"github.com/arc-self/eventcore/internal/telemetry"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/notification/rediscache"
	"github.com/arc-self/eventcore/recorder/postgres"
	"github.com/arc-self/eventcore/system"
	natsprompt "github.com/arc-self/eventcore/system/prompt/nats"
	"github.com/arc-self/eventcore/transcoding"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, "eventcore-worker", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
		mp, err := telemetry.InitMeterProvider(ctx, "eventcore-worker", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

	settings, err := config.LoadSettings(os.Getenv("EVENTCORE_CONFIG_FILE"))
	if err != nil {
		logger.Fatal("failed to load settings", zap.Error(err))
	}

	vaultAddr := envOr("VAULT_ADDR", "http://localhost:8200")
	vaultToken := envOr("VAULT_TOKEN", "root")
	secretPath := envOr("VAULT_SECRET_PATH", "secret/data/arc/eventcore")

	vaultManager, err := config.NewSecretManager(vaultAddr, vaultToken)
	if err != nil {
		logger.Fatal("vault connection failed", zap.Error(err))
	}
	secrets, err := vaultManager.GetKV2(secretPath)
	if err != nil {
		logger.Fatal("failed to load secrets from vault", zap.Error(err))
	}

	pgURL, _ := secrets["PG_URL"].(string)
	natsURL, _ := secrets["NATS_URL"].(string)
	cipherKeyHex, _ := secrets["CIPHER_KEY"].(string)
	redisURL, _ := secrets["REDIS_URL"].(string)

	pool, err := postgres.NewPool(ctx, pgURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	rec := postgres.NewRecorder(pool)

	tc := transcoding.NewTranscoder()
	transcoding.RegisterBuiltins(tc)
	eventMapper := &mapper.EventMapper{
		Transcoder: tc,
		Topics:     mapper.NewTopicRegistry(),
		Compressor: cryptcodec.NewZlibCompressor(6),
	}
	if cipherKeyHex != "" {
		cipher, err := cryptcodec.NewAESGCMCipher([]byte(cipherKeyHex))
		if err != nil {
			logger.Fatal("failed to init cipher", zap.Error(err))
		}
		eventMapper.Cipher = cipher
	}

	natsConn, err := nats.Connect(natsURL, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		logger.Fatal("nats connection failed", zap.Error(err))
	}
	defer natsConn.Drain()
	prompter := natsprompt.New(natsConn, logger)

	// Horizon reports the point before which tracking records for
	// ApplicationName are safe to drop: nothing downstream of this
	// deployment's own process applications can still need them. A real
	// deployment replaces this with the minimum MaxTracking across every
	// consumer it knows reads this application's output; pruning ahead of
	// that minimum would make a restarted consumer re-derive a cursor from
	// a gap instead of its true progress. Left at "nothing processed yet"
	// here since this binary registers no process classes of its own.
	maintainer := system.NewMaintainer(logger)
	if err := maintainer.AddGCTarget("@every 1h", system.GCTarget{
		ApplicationName: settings.ApplicationName,
		PipelineID:      settings.PipelineID,
		Pruner:          rec,
		Horizon:         func(context.Context) (uint64, error) { return 0, nil },
	}); err != nil {
		logger.Error("failed to register gc target", zap.Error(err))
	}
	maintainer.Start()
	defer maintainer.Stop()

	log := &notification.Log{Recorder: rec, PipelineID: settings.PipelineID, SectionSize: settings.NotificationSectionSize}

	h := httpapi.New(logger)
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		h.Logs[settings.ApplicationName] = rediscache.New(log, redisClient, logger)
	} else {
		h.Logs[settings.ApplicationName] = log
	}
	h.Trackers[settings.ApplicationName] = rec

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("eventcore-worker"))
	e.Use(middleware.Recover())
	h.Register(e)

	go func() {
		if err := e.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failure", zap.Error(err))
		}
	}()

	// A deployment embedding this module registers its process classes and
	// starts a runner here, e.g.:
	//   sys, _ := system.New(myClasses, []string{"orders | confirmations"})
	//   runner := system.NewMultiThreadedRunner(sys, settings.PipelineID)
	//   runner.Prompter = prompter
	//   go runner.Run(ctx)
	_ = prompter

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
