package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/logging"
	"github.com/Aman-CERP/plantsearch/internal/search"
	"github.com/Aman-CERP/plantsearch/internal/store"
	"github.com/Aman-CERP/plantsearch/pkg/version"
)

// ServerDependencies contains the injected dependencies for Server.
type ServerDependencies struct {
	// Finder runs searches (required).
	Finder *search.Finder

	// Index reports index status (required).
	Index store.SearchIndex

	// Mapper names derived flags per locale (required).
	Mapper *locale.Mapper

	// Resolver loads plants for get_plant and hit names. Without it hits
	// show stored names and get_plant is unavailable.
	Resolver *search.Resolver

	// Store answers property_values. Optional.
	Store store.PlantStore

	// DefaultLimit is the page size when a tool call sets none. Defaults to
	// search.DefaultLimit.
	DefaultLimit int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the MCP server over the plant index.
type Server struct {
	mcp          *mcp.Server
	finder       *search.Finder
	index        store.SearchIndex
	mapper       *locale.Mapper
	resolver     *search.Resolver
	store        store.PlantStore
	defaultLimit int
	logger       *slog.Logger
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Finder == nil {
		return nil, errors.New("finder is required")
	}
	if deps.Index == nil {
		return nil, errors.New("search index is required")
	}
	if deps.Mapper == nil {
		return nil, errors.New("locale mapper is required")
	}
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = search.DefaultLimit
	}

	s := &Server{
		finder:       deps.Finder,
		index:        deps.Index,
		mapper:       deps.Mapper,
		resolver:     deps.Resolver,
		store:        deps.Store,
		defaultLimit: deps.DefaultLimit,
		logger:       logging.Component(deps.Logger, "mcp"),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Program,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// canceled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mcp_server_started", slog.String("transport", "http"), slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// CallTool invokes a tool by name with JSON-style arguments, bypassing the
// transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchPlants:
		return callWith(ctx, args, s.handleSearchPlants)
	case ToolFindPlantIDs:
		return callWith(ctx, args, s.handleFindPlantIDs)
	case ToolGetPlant:
		return callWith(ctx, args, s.handleGetPlant)
	case ToolPropertyValues:
		return callWith(ctx, args, s.handlePropertyValues)
	case ToolIndexStatus:
		return callWith(ctx, args, s.handleIndexStatus)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// callWith decodes args into In the way the SDK does and runs handler.
func callWith[In, Out any](ctx context.Context, args map[string]any,
	handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error),
) (Out, error) {
	var in In
	var zero Out
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return zero, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return zero, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	_, out, err := handler(ctx, nil, in)
	return out, err
}
