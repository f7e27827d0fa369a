package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/logger"
)

type server struct {
	apiServer     *httpServer
	metricsServer *httpServer
	logger        *logger.Logger
}

// NewServer builds the local HTTP servers enabled by cfg: the storage API on
// ListenAddress and the Prometheus endpoint on MetricsAddress. At least one
// address must be set.
func NewServer(apiHandler http.Handler, cfg config.App, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")
	servers := new(server)

	if cfg.ListenAddress != "" {
		servers.apiServer = newHTTPServer("api", cfg.ListenAddress, apiHandler, logger)
	}
	if cfg.MetricsAddress != "" {
		servers.metricsServer = newMetricsServer(cfg.MetricsAddress, logger)
	}

	if servers.apiServer == nil && servers.metricsServer == nil {
		return nil, errNoServersAreCreated
	}

	servers.logger = logger

	return servers, nil
}

func (s *server) RunServer(ctx context.Context) {
	if err := s.run(ctx); err != nil {
		s.logger.Info().Msgf("Error running server: %v \n", err)
	}
}

func (s *server) Shutdown() {
	if s.apiServer != nil {
		s.apiServer.Shutdown()
	}
	if s.metricsServer != nil {
		s.metricsServer.Shutdown()
	}
}

func (s *server) run(ctx context.Context) error {
	if s.apiServer == nil && s.metricsServer == nil {
		return errors.New("no servers to run")
	}

	idleConnectionsClosed := make(chan struct{})

	go func() {
		<-ctx.Done()

		s.Shutdown()

		close(idleConnectionsClosed)
	}()

	if s.apiServer != nil {
		s.logger.Info().Msg("Launching API server")
		go s.apiServer.RunServer()
	}
	if s.metricsServer != nil {
		s.logger.Info().Msg("Launching metrics server")
		go s.metricsServer.RunServer()
	}

	<-idleConnectionsClosed
	s.logger.Info().Msg("server Shutdown gracefully")

	return nil
}
