package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/treestash/treesync/internal/adapter"
	"github.com/treestash/treesync/internal/api"
	"github.com/treestash/treesync/internal/cache"
	"github.com/treestash/treesync/internal/client"
	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/internal/revcache"
	"github.com/treestash/treesync/internal/server"
	"github.com/treestash/treesync/internal/store"
	"github.com/treestash/treesync/internal/syncer"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("treesyncd")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create node storage")
	}
	defer func() {
		if err := storages.Nodes.Close(); err != nil {
			log.Error().Err(err).Msg("close node storage")
		}
	}()

	bus := events.NewBus()
	transport, err := adapter.NewHTTPTransport(cfg.Remote, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create remote transport")
	}

	c := cache.New(storages.Nodes, revcache.New("init"), bus, log)
	defer c.Close()

	access := client.NewAccess()
	if err := access.Claim("/", client.ModeReadWrite); err != nil {
		log.Fatal().Err(err).Msg("claim root access")
	}

	engine := syncer.New(storages.Nodes, c, transport, bus, access.CheckPathPermission, cfg.Sync, log)
	app := client.New(c, transport, engine, client.NewCaching(), access, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	job := syncer.NewJob(engine, cfg.Sync, log)
	job.Start(ctx)
	defer job.Stop()

	go logEvents(ctx, bus, log)

	if cfg.App.ListenAddress == "" && cfg.App.MetricsAddress == "" {
		// Headless mode: nothing to serve locally, just keep syncing.
		<-ctx.Done()
		log.Info().Msg("shutting down")
		return
	}

	handler := api.NewHandler(app, buildVersion, log)
	servers, err := server.NewServer(handler.Init(), cfg.App, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create servers")
	}

	servers.RunServer(ctx)
}

// logEvents mirrors the engine's event stream into the log so operators can
// follow sync activity without scraping metrics.
func logEvents(ctx context.Context, bus *events.Bus, log *logger.Logger) {
	ch := bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			switch {
			case ev.Err != nil:
				log.Warn().Err(ev.Err).Str("kind", ev.Kind).Msg("sync event")
			case ev.Change != nil:
				log.Debug().
					Str("kind", ev.Kind).
					Str("path", ev.Change.Path).
					Str("origin", string(ev.Change.Origin)).
					Msg("sync event")
			default:
				log.Debug().Str("kind", ev.Kind).Msg("sync event")
			}
		}
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
