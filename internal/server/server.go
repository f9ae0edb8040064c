// Package server exposes the batch orchestrator over HTTP so a browser or
// script can drive the same operations as the CLI.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/config"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second

	listenErrorFormat   = "serve %s: %w"
	shutdownErrorFormat = "shutdown server: %w"
)

// GeneratorFactory builds a generator for apiKey. It fails when the key is
// blank or the transport cannot be configured.
type GeneratorFactory func(apiKey string) (*content.Generator, error)

// Defaults fill batch requests that leave a setting out.
type Defaults struct {
	Keywords string
	Category content.Category
	Tone     content.Tone
	Model    string
	Limit    int
}

type Dependencies struct {
	Orchestrator      *batch.Orchestrator
	Credentials       config.CredentialStore
	APIKeyEnvironment string
	LookupEnvironment func(string) (string, bool)
	NewGenerator      GeneratorFactory
	Defaults          Defaults
	Recorder          *metrics.Recorder
	Logger            *zap.Logger
	Now               func() time.Time
}

type Server struct {
	dependencies Dependencies
	engine       *gin.Engine
	modelGroup   singleflight.Group

	batchContext context.Context
	cancelBatch  context.CancelFunc
}

func New(dependencies Dependencies) *Server {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Now == nil {
		dependencies.Now = time.Now
	}
	if dependencies.LookupEnvironment == nil {
		dependencies.LookupEnvironment = os.LookupEnv
	}
	if dependencies.Orchestrator == nil {
		dependencies.Orchestrator = batch.NewOrchestrator(batch.WithLogger(dependencies.Logger))
	}

	batchContext, cancelBatch := context.WithCancel(context.Background())
	server := &Server{
		dependencies: dependencies,
		batchContext: batchContext,
		cancelBatch:  cancelBatch,
	}
	server.engine = server.routes()
	return server
}

func (server *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(server.dependencies.Logger))
	if server.dependencies.Recorder != nil {
		engine.Use(RequestMetrics(server.dependencies.Recorder))
		engine.GET("/metrics", gin.WrapH(server.dependencies.Recorder.Handler()))
	}

	engine.GET("/healthz", server.health)

	api := engine.Group("/api")
	api.GET("/models", server.listModels)
	api.PUT("/credentials", server.saveCredentials)

	batchRoutes := api.Group("/batch")
	batchRoutes.POST("", server.startBatch)
	batchRoutes.GET("", server.batchStatus)
	batchRoutes.DELETE("", server.clearBatch)
	batchRoutes.POST("/stop", server.stopBatch)
	batchRoutes.GET("/export/:format", server.exportBatch)
	return engine
}

func (server *Server) Handler() http.Handler {
	return server.engine
}

// Run serves on addr until ctx ends, then asks the running batch to stop,
// drains in-flight requests and cancels whatever generation is left.
func (server *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErrors := make(chan error, 1)
	go func() {
		server.dependencies.Logger.Info("http server starting", zap.String("addr", addr))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrors:
		server.cancelBatch()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf(listenErrorFormat, addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	server.dependencies.Logger.Info("shutting down server")
	server.dependencies.Orchestrator.Stop()
	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownContext)
	server.cancelBatch()
	if shutdownErr != nil {
		return fmt.Errorf(shutdownErrorFormat, shutdownErr)
	}
	server.dependencies.Logger.Info("server exited")
	return nil
}

// Close cancels any batch started through the server.
func (server *Server) Close() {
	server.cancelBatch()
}

// generator resolves the current API key and builds a generator for it.
func (server *Server) generator() (*content.Generator, error) {
	apiKey, _, resolveErr := config.ResolveAPIKey(server.dependencies.APIKeyEnvironment, server.dependencies.LookupEnvironment, server.dependencies.Credentials)
	if resolveErr != nil {
		return nil, resolveErr
	}
	if server.dependencies.NewGenerator == nil {
		return nil, errMissingGeneratorFactory
	}
	return server.dependencies.NewGenerator(apiKey)
}
