// launching the server, session reaper, kafka export events
package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ds124wfegd/imagestudio/config"
	"github.com/ds124wfegd/imagestudio/internal/database"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/bgremove"
	"github.com/ds124wfegd/imagestudio/internal/pkg/kafka"
	"github.com/ds124wfegd/imagestudio/internal/pkg/pipeline"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
	"github.com/ds124wfegd/imagestudio/internal/service"
	"github.com/ds124wfegd/imagestudio/internal/transport"
	"github.com/ds124wfegd/imagestudio/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           handler,
			MaxHeaderBytes:    1 << 20,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      cfg.Server.Timeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
			ReadHeaderTimeout: 3 * time.Second,
			TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
			ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
		},
	}
}

func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown may be called before Run; Run then returns http.ErrServerClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetupLogging applies the log section of the config to the standard logger.
func SetupLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// StudioOptions converts the app section into session options.
func StudioOptions(cfg config.AppConfig) (studio.Options, error) {
	opts := studio.DefaultOptions()
	if cfg.DefaultFormat != "" {
		f, err := entity.ParseFormat(cfg.DefaultFormat)
		if err != nil {
			return opts, err
		}
		opts.DefaultFormat = f
	}
	if cfg.DefaultQuality > 0 {
		opts.DefaultQuality = cfg.DefaultQuality
	}
	if cfg.CompressQuality > 0 {
		opts.CompressQuality = cfg.CompressQuality
	}
	return opts, nil
}

// NewGateway returns nil when no API key is configured, which disables
// background removal.
func NewGateway(cfg config.GatewayConfig) studio.Gateway {
	if cfg.APIKey == "" {
		logrus.Warn("gateway api key not provided, background removal disabled")
		return nil
	}
	return bgremove.NewClient(cfg.URL, cfg.APIKey, cfg.Timeout, logrus.NewEntry(logrus.StandardLogger()))
}

// NewProducer connects to Kafka when enabled and otherwise drops events.
func NewProducer(cfg config.KafkaConfig) kafka.Producer {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if !cfg.Enabled {
		return kafka.NewNoopProducer(entry)
	}
	return kafka.NewProducer(cfg.Brokers, cfg.Topic, entry)
}

// Run serves the HTTP API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	opts, err := StudioOptions(cfg.App)
	if err != nil {
		return err
	}

	producer := NewProducer(cfg.Kafka)
	defer producer.Close()

	logger := logrus.NewEntry(logrus.StandardLogger())
	sessionRepo := database.NewSessionRepository()
	engine := pipeline.NewEngine(logger)
	sessionService := service.NewSessionService(sessionRepo, engine, NewGateway(cfg.Gateway), producer, opts, logger)
	sessionHandler := transport.NewSessionHandler(sessionService, cfg.App.MaxUploadBytes)

	reaper := worker.NewSessionReaper(sessionService, cfg.App.ReapInterval, cfg.App.SessionIdleTTL)
	go reaper.Start(ctx)

	if cfg.Server.Mode == "release" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(sessionHandler, transport.RouterConfig{
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RequestTimeout: cfg.App.RenderTimeout,
		Version:        cfg.Server.AppVersion,
	})

	srv := NewServer(cfg, router)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logrus.WithField("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)).Print("App Started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Print("App Shutting Down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
		return err
	}
	return nil
}
