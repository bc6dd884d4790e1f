package modules

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/kohanai/kohana/internal/assemble"
	"github.com/kohanai/kohana/internal/backend"
	"github.com/kohanai/kohana/internal/channel"
	"github.com/kohanai/kohana/internal/clock"
	"github.com/kohanai/kohana/internal/config"
	"github.com/kohanai/kohana/internal/gate"
	"github.com/kohanai/kohana/internal/gif"
	"github.com/kohanai/kohana/internal/memory"
	"github.com/kohanai/kohana/internal/persona"
	"github.com/kohanai/kohana/internal/pipeline"
	"github.com/kohanai/kohana/internal/search"
)

// DomainModule provides the companion services: persona store, memory,
// generation backend, gate, assembler, and the pipeline itself.
var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		persona.NewService,
		provideBackend,
		provideMemoryService,
		provideGate,
		provideSearcher,
		provideGIFSource,
		provideAssembler,
		providePipeline,
	),
	fx.Invoke(startSweeper),
)

func provideBackend(log *slog.Logger, cfg config.Config) (*backend.Gemini, error) {
	return backend.NewGemini(context.Background(), log, cfg.Gemini)
}

func provideMemoryService(log *slog.Logger, pool *pgxpool.Pool, be *backend.Gemini, cfg config.Config) *memory.Service {
	return memory.NewService(log, pool, be, memory.Options{
		Limit:  cfg.Pipeline.HistoryLimit,
		Keep:   cfg.Pipeline.HistoryKeep,
		Policy: cfg.Pipeline.Compaction,
	})
}

func provideGate(log *slog.Logger, be *backend.Gemini, cfg config.Config) *gate.Service {
	return gate.NewService(log, be, cfg.Pipeline.SuppressionCap)
}

// provideSearcher returns a nil interface when search is unconfigured so the
// assembler skips augmentation instead of calling a dead client.
func provideSearcher(log *slog.Logger, cfg config.Config) assemble.Searcher {
	brave := search.NewBrave(log, cfg.Search)
	if brave == nil {
		return nil
	}
	return brave
}

func provideGIFSource(log *slog.Logger, cfg config.Config) pipeline.GIFSource {
	tenor := gif.NewTenor(log, cfg.GIF)
	if tenor == nil {
		return nil
	}
	return tenor
}

func provideAssembler(log *slog.Logger, be *backend.Gemini, searcher assemble.Searcher, cfg config.Config) *assemble.Assembler {
	return assemble.New(log, be, searcher, cfg.Pipeline.HistoryWindow)
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	personas *persona.Service,
	mem *memory.Service,
	be *backend.Gemini,
	g *gate.Service,
	assembler *assemble.Assembler,
	gifs pipeline.GIFSource,
	manager *channel.Manager,
	clk clock.Clock,
) *pipeline.Service {
	return pipeline.NewService(log, cfg.Pipeline, personas, mem, be, g, assembler, gifs, manager, clk)
}

// startSweeper reaps expired image confirmations on a schedule.
func startSweeper(lc fx.Lifecycle, log *slog.Logger, svc *pipeline.Service) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", svc.SweepImages); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			<-c.Stop().Done()
			return nil
		},
	})
	return nil
}
