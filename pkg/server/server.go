package server

import (
	"log/slog"

	internalserver "github.com/SmitUplenchwar2687/Retrace/internal/server"
)

// Server is the Retrace HTTP server exposing replay status and events.
type Server = internalserver.Server

// Options wires the server to a replay session.
type Options = internalserver.Options

// Hub manages WebSocket clients and broadcasts replay events.
type Hub = internalserver.Hub

// LogInfo describes the loaded log.
type LogInfo = internalserver.LogInfo

// DashboardHTML is the embedded single-page dashboard.
const DashboardHTML = internalserver.DashboardHTML

// New creates a new Retrace server.
func New(addr string, opts Options) *Server {
	return internalserver.New(addr, opts)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return internalserver.NewHub(logger)
}
