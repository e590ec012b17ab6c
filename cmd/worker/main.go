package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog"
	"github.com/google/uuid"
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
	"github.com/marcelsud/webhook-gateway/internal/app"
	"github.com/marcelsud/webhook-gateway/provider"
	"github.com/marcelsud/webhook-gateway/queue"
	queueredis "github.com/marcelsud/webhook-gateway/queue/redis"
)

// dueBatchSize is how many tasks one poll takes off the queue.
const dueBatchSize = 32

/* The worker owns the deferred half of the gateway: async handler
 * executions and outbound delivery attempts, both realized as delayed
 * tasks. Retry delays are never thread sleeps; a retried task simply
 * becomes due again later.
 */

func main() {
	logger := httplog.NewLogger("webhook-gateway-worker", httplog.Options{
		JSON: true,
	})

	cfg, err := config.GetConfig()
	if err != nil {
		logger.Error().Err(err).Msg("loading config")
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
		logger.Error().Err(err).Msg("loading providers")
		return
	}

	events, err := eventredis.NewRepository(client)
	if err != nil {
		logger.Error().Err(err).Msg("connecting event repository")
		return
	}
	defer events.Close(ctx)

	executions, err := executionredis.NewStore(client)
	if err != nil {
		logger.Error().Err(err).Msg("connecting execution store")
		return
	}

	tasks, err := queueredis.NewQueue(client)
	if err != nil {
		logger.Error().Err(err).Msg("connecting task queue")
		return
	}

	brk, err := breaker.New(breakerredis.NewStore(client), breaker.Settings{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("building breaker")
		return
	}
	brk.OnTransition = func(endpoint string, from, to breaker.State) {
		logger.Info().
			Str("endpoint", endpoint).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("breaker transition")
	}

	deliveryStore, err := deliveryredis.NewStore(client)
	if err != nil {
		logger.Error().Err(err).Msg("connecting delivery store")
		return
	}
	deliveries := delivery.NewPipeline(deliveryStore, brk, tasks, nil)

	registry, err := handler.NewRegistry(loader.Definitions(), app.Funcs(loader, deliveries))
	if err != nil {
		logger.Error().Err(err).Msg("building registry")
		return
	}

	machine := execution.NewStateMachine(executions, cfg.LockStaleness())
	executor := execution.NewExecutor(machine, registry, events, tasks, cfg.HandlerTimeout())

	// One lease holder identity per worker process.
	holder := fmt.Sprintf("worker-%s", uuid.New().String())
	logger.Info().Str("holder", holder).Msg("worker started")

	ticker := time.NewTicker(cfg.WorkerPoll())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker shutting down")
			return
		case <-ticker.C:
		}

		due, err := tasks.Due(ctx, time.Now(), dueBatchSize)
		if err != nil {
			logger.Error().Err(err).Msg("polling due tasks")
			continue
		}

		status := "idle"
		if len(due) > 0 {
			status = "processing"
		}
		if err := events.SetWorkerHeartbeat(ctx, holder, status); err != nil {
			logger.Error().Err(err).Msg("refreshing heartbeat")
		}

		for _, task := range due {
			switch task.Kind {
			case queue.KindExecution:
				if err := executor.Execute(ctx, task.ID, holder); err != nil {
					logger.Error().Err(err).Str("record", task.ID).Msg("executing handler")
				}
			case queue.KindDelivery:
				if err := deliveries.Deliver(ctx, task.ID); err != nil {
					logger.Error().Err(err).Str("delivery", task.ID).Msg("delivering webhook")
				}
			}
		}
	}
}
