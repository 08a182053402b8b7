package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/gauge-tracker/internal/async"
	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/ingest"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/gauge-tracker/internal/repository"
	svc "github.com/joseph-ayodele/gauge-tracker/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Text handler without time/level keeps container logs short.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.InitDatabase(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	readings := repo.NewReadingRepository(db, logger)

	processor, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
		async.WithSkip(func(ctx context.Context, job async.Job) (bool, error) {
			hash, err := pipeline.HashFile(job.Path)
			if err != nil {
				return false, err
			}
			return readings.ExistsByHash(ctx, hash)
		}),
		async.WithHandler(func(ctx context.Context, job async.Job, out pipeline.Outcome) {
			if err := readings.Insert(ctx, out.Record()); err != nil {
				logger.Error("store reading failed", "path", job.Path, "trace_id", job.TraceID, "error", err)
			}
		}),
	)

	// gRPC
	grpcServer, healthServer := svc.NewGRPCServer(svc.NewReadingsService(readings, processor, queue, logger), logger)
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCAddr))
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gauged grpc listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	// HTTP
	httpServer := &http.Server{
		Addr:              listenAddr(cfg.Server.HTTPAddr),
		Handler:           svc.NewHTTPHandler(readings, db, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("gauged http listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			stop()
		}
	}()

	// Watched directories feed the queue.
	if roots := cfg.Pipeline.WatchDirs; len(roots) > 0 {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       roots,
			InitialScan: true,
			Debounce:    cfg.Pipeline.WatchDebounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "roots", roots, "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		go func() {
			for p := range paths {
				if err := queue.Enqueue(ctx, async.Job{Path: p, SubmittedAt: time.Now()}); err != nil {
					logger.Warn("enqueue failed", "path", p, "error", err)
				}
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

func listenAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
