// Command kubewise runs the conversational Kubernetes companion: a Redis-backed
// checkpoint and history store, the supervisor graph, and the HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/kubewise-ai/kubewise/agent"
	"github.com/kubewise-ai/kubewise/internal/config"
	"github.com/kubewise-ai/kubewise/internal/server"
	"github.com/kubewise-ai/kubewise/observe"
	otelsink "github.com/kubewise-ai/kubewise/observe/otel"
	"github.com/kubewise-ai/kubewise/providers/proxy"
	redisstate "github.com/kubewise-ai/kubewise/state/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("kubewise: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var sink observe.Sink = observe.NoopSink{}
	if cfg.TracingEnabled {
		async := observe.NewAsyncSink(otelsink.NewSink(otel.GetTracerProvider()), 256)
		defer async.Close()
		sink = async
	}

	pool, err := redisstate.NewPool(cfg.RedisURL, redisstate.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		return err
	}
	defer pool.Close()

	saver, err := redisstate.NewSaver(pool, redisstate.WithObserver(sink))
	if err != nil {
		return err
	}

	providerOpts := []proxy.Option{}
	if cfg.ProxyAPIKey != "" {
		providerOpts = append(providerOpts, proxy.WithAPIKey(cfg.ProxyAPIKey))
	}
	if cfg.ProxyModel != "" {
		providerOpts = append(providerOpts, proxy.WithModel(cfg.ProxyModel))
	}
	provider, err := proxy.New(cfg.ProxyBaseURL, providerOpts...)
	if err != nil {
		return err
	}

	supervisor, err := agent.NewSupervisor(provider, saver, saver,
		agent.WithObserver(sink),
		agent.WithHistoryWindow(cfg.HistoryWindow),
	)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Addr:       cfg.HTTPAddr,
		Supervisor: supervisor,
		History:    saver,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
