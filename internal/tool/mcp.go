package tool

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const serverVersion = "0.1.0"

type SemanticSearchInput struct {
	Query string `json:"query" jsonschema:"the search query or question to find relevant information"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// Server exposes the knowledge base tools over the Model Context Protocol.
type Server struct {
	search *SemanticSearchTool
	server *mcp.Server
}

func NewServer(search *SemanticSearchTool) *Server {
	s := &Server{
		search: search,
		server: mcp.NewServer(&mcp.Implementation{Name: "mrag", Version: serverVersion}, nil),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        SemanticSearchName,
		Description: "Perform semantic search on stored documents using vector similarity. Use this tool to find relevant information from the knowledge base.",
	}, s.handleSemanticSearch)
	return s
}

func (s *Server) handleSemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, any, error) {
	text := s.search.SemanticSearch(ctx, input.Query, input.Limit)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
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
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logutil.GetLogger(ctx).Error("shutdown mcp server failed", zap.Error(err))
		}
	}()
	logutil.GetLogger(ctx).Info("mcp server listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
