package modules

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/channel/adapters/discord"
	"github.com/kohanai/kohana/internal/channel/adapters/telegram"
	"github.com/kohanai/kohana/internal/config"
	"github.com/kohanai/kohana/internal/pipeline"
)

// ChannelModule provides the channel manager with the enabled platform
// adapters and starts the gateway connections.
var ChannelModule = fx.Module(
	"channel",
	fx.Provide(
		provideChannelManager,
	),
	fx.Invoke(startChannelManager),
)

func provideChannelManager(log *slog.Logger, cfg config.Config) *channel.Manager {
	manager := channel.NewManager(log, cfg.Pipeline.InboundWorkers)
	if cfg.Discord.Enabled && strings.TrimSpace(cfg.Discord.Token) != "" {
		manager.Register(discord.New(log, cfg.Discord.Token))
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) != "" {
		manager.Register(telegram.New(log, cfg.Telegram.Token))
	}
	return manager
}

func startChannelManager(lc fx.Lifecycle, manager *channel.Manager, svc *pipeline.Service) {
	manager.SetProcessor(svc)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return manager.StartAll(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return manager.StopAll(stopCtx)
		},
	})
}
