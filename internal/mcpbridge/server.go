// Package mcpbridge implements a Model Context Protocol (MCP) server that
// exposes container, VPS and DNS/CDN operations as MCP tools and resources.
//
// The server speaks JSON-RPC 2.0 over stdio, which is the standard transport
// for local MCP hosts, and over a single HTTP endpoint (see http.go).
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// rpcRequest is an inbound JSON-RPC 2.0 message.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // nil = notification
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is an outbound JSON-RPC 2.0 message.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// ServerInfo is reported in the initialize response.
type ServerInfo struct {
	Name    string
	Version string
}

// Server is an MCP server. Serve reads newline-delimited JSON-RPC 2.0
// messages from a reader and writes responses to the writer passed to
// NewServer; the HTTP transport answers one message per request.
type Server struct {
	info      ServerInfo
	tools     *ToolRegistry
	resources *ResourceRegistry
	out       *json.Encoder
	outMu     sync.Mutex
	logger    *zap.Logger
}

// NewServer creates an MCP server that writes responses to w.
// logger must not write to stdout when w is stdout.
func NewServer(w io.Writer, info ServerInfo, tools *ToolRegistry, resources *ResourceRegistry, logger *zap.Logger) *Server {
	return &Server{
		info:      info,
		tools:     tools,
		resources: resources,
		out:       json.NewEncoder(w),
		logger:    logger,
	}
}

// Serve reads JSON-RPC messages from r until EOF or ctx is cancelled.
// It blocks until the stream closes.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<20) // 1 MB max per message

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(errorResponse(json.RawMessage(`null`), codeParseError, "parse error"))
			continue
		}

		// Notifications have no id, so no response is sent.
		if len(req.ID) == 0 {
			continue
		}

		// Tool calls and resource reads hit remote APIs, so they run in
		// goroutines while protocol-level methods stay synchronous.
		if req.Method == "tools/call" || req.Method == "resources/read" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.write(s.dispatch(ctx, req))
			}()
		} else {
			s.write(s.dispatch(ctx, req))
		}
	}
	return scanner.Err()
}

// handle answers one raw JSON-RPC message. It returns nil for
// notifications.
func (s *Server) handle(ctx context.Context, raw []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		resp := errorResponse(json.RawMessage(`null`), codeParseError, "parse error")
		return &resp
	}
	if len(req.ID) == 0 {
		return nil
	}
	resp := s.dispatch(ctx, req)
	return &resp
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return result(req.ID, map[string]any{"tools": s.tools.Definitions()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return result(req.ID, map[string]any{"resources": s.resources.List()})
	case "resources/templates/list":
		return result(req.ID, map[string]any{"resourceTemplates": s.resources.Templates()})
	case "resources/read":
		return s.handleResourcesRead(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req rpcRequest) rpcResponse {
	return result(req.ID, map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{"name": s.info.Name, "version": s.info.Version},
	})
}

func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) rpcResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "invalid params")
	}

	s.logger.Debug("tool call", zap.String("tool", params.Name))
	text, isErr := s.tools.Call(ctx, params.Name, params.Arguments)

	return result(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": isErr,
	})
}

func (s *Server) handleResourcesRead(ctx context.Context, req rpcRequest) rpcResponse {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return errorResponse(req.ID, codeInvalidParams, "invalid params")
	}

	contents, err := s.resources.Read(ctx, params.URI)
	switch {
	case err == nil:
		return result(req.ID, mcp.ReadResourceResult{Contents: contents})
	case isUnknownResource(err):
		return errorResponse(req.ID, codeInvalidParams, err.Error())
	default:
		s.logger.Warn("resource read failed", zap.String("uri", params.URI), zap.Error(err))
		return errorResponse(req.ID, codeInternalError, err.Error())
	}
}

func (s *Server) write(resp rpcResponse) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.out.Encode(resp); err != nil {
		s.logger.Error("write error", zap.Error(err))
	}
}

func result(id json.RawMessage, v any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, msg string) rpcResponse {
	return rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: msg},
	}
}
