package mcpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

type readResourceRequest struct {
	URI string `json:"uri"`
}

type statusResponse struct {
	Server    string `json:"server"`
	Connected bool   `json:"connected"`
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	summaries := s.manager.Summaries()
	if summaries == nil {
		summaries = []mcpmgr.ServerSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var raw mcpmgr.RawServerConfig
	if !s.decodeBody(w, r, &raw, false) {
		return
	}
	if err := s.manager.ConnectRaw(r.Context(), name, raw); err != nil {
		s.writeManagerError(w, "connect", name, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Server: name, Connected: true})
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.manager.Disconnect(r.Context(), name); err != nil {
		s.writeManagerError(w, "disconnect", name, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Server: name, Connected: false})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tools, err := s.manager.ListTools(r.Context(), name)
	if err != nil {
		s.writeManagerError(w, "list tools", name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var args map[string]any
	if !s.decodeBody(w, r, &args, true) {
		return
	}
	result, err := s.manager.CallTool(r.Context(), name, chi.URLParam(r, "tool"), args)
	if err != nil {
		s.writeManagerError(w, "call tool", name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := s.manager.ListResources(r.Context(), name)
	if err != nil {
		s.writeManagerError(w, "list resources", name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) readResource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req readResourceRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}
	result, err := s.manager.ReadResource(r.Context(), name, req.URI)
	if err != nil {
		s.writeManagerError(w, "read resource", name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := s.manager.ListPrompts(r.Context(), name)
	if err != nil {
		s.writeManagerError(w, "list prompts", name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getPrompt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var args map[string]any
	if !s.decodeBody(w, r, &args, true) {
		return
	}
	result, err := s.manager.GetPrompt(r.Context(), name, chi.URLParam(r, "prompt"), args)
	if err != nil {
		s.writeManagerError(w, "get prompt", name, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	switch {
	case err == nil:
		return true
	case optional && errors.Is(err, io.EOF):
		return true
	default:
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
}

func (s *Server) writeManagerError(w http.ResponseWriter, op, server string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn(op+" failed", "server", server, "kind", mcpmgr.KindOf(err), "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusForError maps a manager error to an HTTP status by its kind.
func StatusForError(err error) int {
	switch mcpmgr.KindOf(err) {
	case mcpmgr.KindConfig, mcpmgr.KindSecurity:
		return http.StatusBadRequest
	case mcpmgr.KindRegistry:
		return http.StatusNotFound
	case mcpmgr.KindEnvironment:
		return http.StatusPreconditionFailed
	case mcpmgr.KindTimeout:
		return http.StatusGatewayTimeout
	case mcpmgr.KindTransport, mcpmgr.KindProtocol:
		return http.StatusBadGateway
	default:
		if errors.Is(err, mcpmgr.ErrConnectCancelled) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
