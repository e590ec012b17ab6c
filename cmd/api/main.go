package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/marcelsud/webhook-gateway/breaker"
	breakerredis "github.com/marcelsud/webhook-gateway/breaker/redis"
	"github.com/marcelsud/webhook-gateway/config"
	"github.com/marcelsud/webhook-gateway/delivery"
	deliveryredis "github.com/marcelsud/webhook-gateway/delivery/redis"
	eventredis "github.com/marcelsud/webhook-gateway/event/redis"
	"github.com/marcelsud/webhook-gateway/execution"
	executionredis "github.com/marcelsud/webhook-gateway/execution/redis"
	"github.com/marcelsud/webhook-gateway/handler"
	"github.com/marcelsud/webhook-gateway/intake"
	"github.com/marcelsud/webhook-gateway/internal/app"
	chihandlers "github.com/marcelsud/webhook-gateway/internal/http/chi"
	"github.com/marcelsud/webhook-gateway/metrics"
	"github.com/marcelsud/webhook-gateway/provider"
	queueredis "github.com/marcelsud/webhook-gateway/queue/redis"
	ratelimitredis "github.com/marcelsud/webhook-gateway/ratelimit/redis"
)

const TIMEOUT = 30 * time.Second

/*
 * main is where all the wiring happens: dependencies are initialized
 * here and flow downward only — the transport imports the dispatch
 * core, which imports the storage layer, never the other way around.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	loader := provider.NewLoader()
	if err := loader.Load(cfg.ProvidersFile); err != nil {
		fmt.Println(err)
		return
	}

	events, err := eventredis.NewRepository(client)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer events.Close(ctx)

	executions, err := executionredis.NewStore(client)
	if err != nil {
		fmt.Println(err)
		return
	}

	limiter, err := ratelimitredis.NewLimiter(client)
	if err != nil {
		fmt.Println(err)
		return
	}

	tasks, err := queueredis.NewQueue(client)
	if err != nil {
		fmt.Println(err)
		return
	}

	brk, err := breaker.New(breakerredis.NewStore(client), breaker.Settings{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	brk.OnTransition = func(endpoint string, from, to breaker.State) {
		fmt.Printf("breaker %s: %s -> %s\n", endpoint, from, to)
	}

	deliveryStore, err := deliveryredis.NewStore(client)
	if err != nil {
		fmt.Println(err)
		return
	}
	deliveries := delivery.NewPipeline(deliveryStore, brk, tasks, nil)

	registry, err := handler.NewRegistry(loader.Definitions(), app.Funcs(loader, deliveries))
	if err != nil {
		fmt.Println(err)
		return
	}

	machine := execution.NewStateMachine(executions, cfg.LockStaleness())
	executor := execution.NewExecutor(machine, registry, events, tasks, cfg.HandlerTimeout())
	pipeline := intake.NewPipeline(loader, limiter, events, registry, executions, executor, tasks)

	collector := metrics.NewRedisCollector(client)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(ctx)

	r := chihandlers.Handlers(ctx, pipeline, loader, exporter.ServeHTTP())

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
