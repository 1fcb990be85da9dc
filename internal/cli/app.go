package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cashflowly/mpesa-listener/internal/capability"
	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/listener"
	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
	"github.com/cashflowly/mpesa-listener/internal/scheduler"
	"github.com/cashflowly/mpesa-listener/internal/sinks"
	"github.com/cashflowly/mpesa-listener/internal/sources"
	"github.com/cashflowly/mpesa-listener/internal/transport"
)

const (
	// Let queued notifications finish when the sources stop.
	mailboxDrainTimeout = 5 * time.Second
	probeStopTimeout    = 5 * time.Second
)

var oracleFactory = capability.FromConfig

// runListener builds the listener, its sinks and sources from cfg and blocks
// until every source has stopped. extra sources run alongside the webhook.
func runListener(ctx context.Context, cfg *config.Config, out io.Writer, extra ...transport.Source) error {
	oracle, err := oracleFactory(cfg)
	if err != nil {
		return err
	}

	handlers, hub, err := buildSinks(ctx, cfg, out)
	if err != nil {
		return err
	}
	if hub != nil {
		defer func() {
			logging.Logger().Info("closing notification stream", "clients", hub.Clients())
			hub.Close()
		}()
	}

	srcs := append([]transport.Source(nil), extra...)
	var webhook *sources.Webhook
	if cfg.Webhook.Enabled {
		var opts []sources.WebhookOption
		if hub != nil {
			opts = append(opts, sources.WithNotifications(hub))
		}
		webhook = sources.NewWebhook(cfg.Webhook, opts...)
		srcs = append(srcs, webhook)
	}
	if len(srcs) == 0 {
		return errors.New("no sources enabled: set webhook.enabled=true or run mpesa simulate")
	}

	lst, err := listener.New(listener.Deps{
		Source: transport.Merge(srcs...),
		Oracle: oracle,
	})
	if err != nil {
		return err
	}
	if webhook != nil {
		webhook.SetCapability(lst)
	}

	mailboxCtx, cancelMailbox := context.WithCancel(context.WithoutCancel(ctx))
	mailbox := runtime.NewMailbox(sinks.Fanout(handlers))
	if err := mailbox.Start(mailboxCtx); err != nil {
		cancelMailbox()
		return err
	}
	defer func() {
		cancelMailbox()
		mailbox.Wait()
	}()
	lst.Register(mailbox.Subscriber())

	if cfg.Probe.Enabled {
		probe := scheduler.NewProbe(lst, cfg.Probe.Schedule)
		if err := probe.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), probeStopTimeout)
			defer cancel()
			if err := probe.Stop(stopCtx); err != nil {
				logging.Logger().Warn("capability probe did not stop cleanly", "err", err)
			}
			granted, known := probe.Last()
			logging.Logger().Info("capability probe stopped", "granted", granted, "known", known)
		}()
	}

	logging.Logger().Info(
		"listener started",
		"home_dir", cfg.HomeDir,
		"oracle", cfg.Capability.Oracle,
		"sources", len(srcs),
		"sinks", len(handlers),
	)

	listenErr := lst.Listen(ctx)
	lst.Register(nil)
	drainMailbox(mailbox)
	logging.Logger().Info("listener stopped")
	return listenErr
}

func buildSinks(ctx context.Context, cfg *config.Config, out io.Writer) ([]runtime.NotificationHandler, *sinks.Hub, error) {
	var (
		handlers []runtime.NotificationHandler
		hub      *sinks.Hub
	)
	if cfg.Sinks.Console.Enabled {
		handlers = append(handlers, sinks.NewConsole(out))
	}
	if cfg.Sinks.WebSocket.Enabled {
		hub = sinks.NewHub(cfg.Sinks.WebSocket.WriteTimeout)
		handlers = append(handlers, hub)
	}
	if cfg.Sinks.Telegram.Enabled {
		telegram := sinks.NewTelegram(cfg.Sinks.Telegram)
		if err := telegram.Connect(ctx); err != nil {
			if hub != nil {
				hub.Close()
			}
			return nil, nil, err
		}
		handlers = append(handlers, telegram)
	}
	return handlers, hub, nil
}

func drainMailbox(mailbox *runtime.Mailbox) {
	drainCtx, cancel := context.WithTimeout(context.Background(), mailboxDrainTimeout)
	defer cancel()
	if err := mailbox.WaitUntilIdle(drainCtx); err != nil {
		logging.Logger().Warn("dropping undelivered notifications", "pending", mailbox.Len())
		mailbox.Stop()
	}
}
