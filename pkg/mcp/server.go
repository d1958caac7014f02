// Package mcp exposes covering-array generation as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerFactory creates and runs MCP servers.
type ServerFactory struct {
	Impl   *mcp.Implementation
	Logger *slog.Logger
}

// NewServerFactory creates a new server factory.
func NewServerFactory(name, version string, logger *slog.Logger) *ServerFactory {
	if logger == nil {
		logger = discardLogger()
	}
	return &ServerFactory{
		Impl: &mcp.Implementation{
			Name:    name,
			Version: version,
		},
		Logger: logger,
	}
}

// CreateServer creates a server with the tools of h registered.
func (f *ServerFactory) CreateServer(h *Handler) *mcp.Server {
	server := mcp.NewServer(f.Impl, &mcp.ServerOptions{})
	if h != nil {
		h.Register(server)
	}
	return server
}

// RunServer serves until ctx is done, over stdio or SSE on port.
func (f *ServerFactory) RunServer(ctx context.Context, server *mcp.Server, transport string, port string) error {
	switch transport {
	case "stdio":
		return server.Run(ctx, &mcp.StdioTransport{})
	case "sse":
		sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
			return server
		}, nil)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           sseHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		f.Logger.Info("starting SSE server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}
