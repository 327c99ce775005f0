package api

import (
	"encoding/json"
	"net/http"

	"github.com/org/skillgate/pkg/models"
)

// JSON-RPC 2.0 error codes used by the protocol surface.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

// RPCHandler handles POST /rpc. Protocol errors surface as JSON-RPC errors;
// skill-level failures surface inside the result envelope with HTTP 200.
func (s *Server) RPCHandler(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRPCError(w, nil, rpcParseError, "parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, rpcInvalidRequest, "invalid request")
		return
	}

	switch req.Method {
	case "tools/list":
		s.rpcToolsList(w, req)
	case "tools/call":
		s.rpcToolsCall(w, r, req)
	default:
		writeRPCError(w, req.ID, rpcMethodNotFound, "method not found: "+req.Method)
	}
}

type toolInfo struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description"`
	Parameters  map[string]models.ParameterSpec `json:"parameters"`
	Tier        models.Tier                     `json:"tier"`
}

func (s *Server) rpcToolsList(w http.ResponseWriter, req rpcRequest) {
	descriptors := s.registry.Snapshot().List("")

	tools := make([]toolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		desc := d.Description
		if d.Tier == models.TierPremium {
			desc += " [premium]"
		}
		tools = append(tools, toolInfo{
			Name:        d.Name,
			Description: desc,
			Parameters:  d.ParameterSchema,
			Tier:        d.Tier,
		})
	}
	writeRPCResult(w, req.ID, map[string]any{"tools": tools})
}

func (s *Server) rpcToolsCall(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		writeRPCError(w, req.ID, rpcInvalidParams, "params must carry a tool name")
		return
	}

	tier := models.TierFree
	if entry, ok := s.registry.Snapshot().Get(params.Name); ok {
		tier = entry.Descriptor.Tier
	}

	result := s.gateway.Dispatch(r.Context(), params.Name, bearerToken(r), params.Arguments, clientIP(r))
	dispatchesTotal.WithLabelValues(string(tier), string(result.Status)).Inc()
	writeRPCResult(w, req.ID, result)
}
