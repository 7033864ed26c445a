// Package api serves stored run records over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/stagehand/internal/results"
)

const (
	healthPathConstant             = "/healthz"
	runsPathConstant               = "/runs"
	runPathConstant                = "/runs/:id"
	runIdentifierParameterConstant = "id"
	errorFieldConstant             = "error"
	statusFieldConstant            = "status"
	statusOKConstant               = "ok"
	shutdownTimeoutConstant        = 5 * time.Second
	readHeaderTimeoutConstant      = 10 * time.Second
	storeMissingMessageConstant    = "results store not configured"
	logMessageRequestConstant      = "api_request"
	logMessageListeningConstant    = "api_listening"
	logMessageStoppedConstant      = "api_stopped"
	logFieldMethodConstant         = "method"
	logFieldPathConstant           = "path"
	logFieldStatusConstant         = "status"
	logFieldDurationConstant       = "duration"
	logFieldAddressConstant        = "address"
)

// ErrStoreNotConfigured indicates a server constructed without a results store.
var ErrStoreNotConfigured = errors.New(storeMissingMessageConstant)

// Server exposes run records from a results.Store.
type Server struct {
	store  results.Store
	logger *zap.Logger
	engine *gin.Engine
}

// NewServer builds the HTTP handler tree.
func NewServer(store results.Store, logger *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	server := &Server{store: store, logger: logger, engine: gin.New()}
	server.engine.Use(gin.Recovery(), server.logRequests)
	server.engine.GET(healthPathConstant, server.handleHealth)
	server.engine.GET(runsPathConstant, server.handleListRuns)
	server.engine.GET(runPathConstant, server.handleGetRun)
	return server, nil
}

// Handler returns the HTTP handler.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// ListenAndServe serves on address until the context is cancelled.
func (server *Server) ListenAndServe(executionContext context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           server.engine,
		ReadHeaderTimeout: readHeaderTimeoutConstant,
	}

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.ListenAndServe()
	}()
	server.logger.Info(logMessageListeningConstant, zap.String(logFieldAddressConstant, address))

	select {
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return serveError
	case <-executionContext.Done():
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeoutConstant)
		defer cancel()
		shutdownError := httpServer.Shutdown(shutdownContext)
		server.logger.Info(logMessageStoppedConstant, zap.String(logFieldAddressConstant, address))
		return shutdownError
	}
}

func (server *Server) handleHealth(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, gin.H{statusFieldConstant: statusOKConstant})
}

func (server *Server) handleListRuns(requestContext *gin.Context) {
	runs, listError := server.store.List(requestContext.Request.Context())
	if listError != nil {
		requestContext.JSON(http.StatusInternalServerError, gin.H{errorFieldConstant: listError.Error()})
		return
	}
	requestContext.JSON(http.StatusOK, runs)
}

func (server *Server) handleGetRun(requestContext *gin.Context) {
	run, loadError := server.store.Load(requestContext.Request.Context(), requestContext.Param(runIdentifierParameterConstant))
	switch {
	case errors.Is(loadError, results.ErrRunNotFound), errors.Is(loadError, results.ErrInvalidRunID):
		requestContext.JSON(http.StatusNotFound, gin.H{errorFieldConstant: loadError.Error()})
	case loadError != nil:
		requestContext.JSON(http.StatusInternalServerError, gin.H{errorFieldConstant: loadError.Error()})
	default:
		requestContext.JSON(http.StatusOK, run)
	}
}

func (server *Server) logRequests(requestContext *gin.Context) {
	startTime := time.Now()
	requestContext.Next()
	server.logger.Debug(logMessageRequestConstant,
		zap.String(logFieldMethodConstant, requestContext.Request.Method),
		zap.String(logFieldPathConstant, requestContext.FullPath()),
		zap.Int(logFieldStatusConstant, requestContext.Writer.Status()),
		zap.Duration(logFieldDurationConstant, time.Since(startTime)),
	)
}
