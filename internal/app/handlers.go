package app

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-gateway/delivery"
	"github.com/marcelsud/webhook-gateway/event"
	"github.com/marcelsud/webhook-gateway/handler"
	"github.com/marcelsud/webhook-gateway/provider"
)

/* Handler functions are bound to their string keys once, at startup.
 * providers.yaml refers to these keys; a definition naming a key with
 * no binding here fails registry construction instead of failing at
 * dispatch time.
 */

// Funcs builds the handler bindings for this deployment.
//
// "discard" acknowledges an event without side effects. Every
// configured outbound endpoint also gets a "forward-{name}" handler
// that relays the event payload through the delivery pipeline.
func Funcs(loader *provider.Loader, deliveries *delivery.Pipeline) map[string]handler.Func {
	funcs := map[string]handler.Func{
		"discard": func(ctx context.Context, ev event.Event) handler.Result {
			return handler.Ok()
		},
	}

	for _, endpoint := range loader.Endpoints() {
		funcs["forward-"+endpoint.Name] = forward(endpoint, deliveries)
	}

	return funcs
}

// forward relays the raw event payload to one outbound endpoint. The
// delivery pipeline owns retries from there; a failure to even enqueue
// is retryable at the execution level.
func forward(endpoint delivery.Endpoint, deliveries *delivery.Pipeline) handler.Func {
	return func(ctx context.Context, ev event.Event) handler.Result {
		if _, err := deliveries.Request(ctx, endpoint, ev.Payload, nil); err != nil {
			return handler.Retry(fmt.Errorf("requesting delivery to %s: %w", endpoint.Name, err))
		}
		return handler.Ok()
	}
}
