// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdiddy/clinical-digest/internal/export"
	"github.com/pdiddy/clinical-digest/internal/pipeline"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type searchRequest struct {
	Query      string `json:"query" validate:"required"`
	MaxResults *int   `json:"max_results" validate:"omitempty,min=1,max=10"`
}

type searchResponse struct {
	Query    string         `json:"query"`
	Count    int            `json:"count"`
	Results  []types.Result `json:"results"`
	Message  string         `json:"message"`
	Document string         `json:"document,omitempty"`
	Filename string         `json:"filename,omitempty"`
}

type exportRequest struct {
	Query   string         `json:"query" validate:"required"`
	Results []types.Result `json:"results"`
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchHandler handles POST /api/search.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := s.checkSearch(&req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	results, err := s.runner.Run(r.Context(), req.Query, *req.MaxResults, nil)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildResponse(req.Query, results))
}

// streamHandler handles GET /api/search/stream as Server-Sent Events:
// "progress" events during the run, then one "result" event.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Query: r.URL.Query().Get("query")}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_results must be an integer")
			return
		}
		req.MaxResults = &n
	}
	if msg, ok := s.checkSearch(&req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	progress := func(e types.ProgressEvent) {
		sendEvent(w, flusher, "progress", e)
	}
	results, err := s.runner.Run(r.Context(), req.Query, *req.MaxResults, progress)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", req.Query).Msg("streamed run ended early")
		sendEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}
	sendEvent(w, flusher, "result", s.buildResponse(req.Query, results))
}

// exportHandler handles POST /api/export and returns the Markdown document
// as an attachment.
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	now := s.now()
	doc := export.Render(req.Results, req.Query, now)
	if doc == "" {
		s.logger.Error().Str("query", req.Query).Msg("document rendering failed")
		writeError(w, http.StatusInternalServerError, "document could not be generated")
		return
	}

	w.Header().Set("Content-Type", export.MediaType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(req.Query, now)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// checkSearch validates req and fills in an omitted max_results. An explicit
// value outside 1-10, zero included, is rejected. It returns the message to
// show when the request is rejected.
func (s *Server) checkSearch(req *searchRequest) (string, bool) {
	if strings.TrimSpace(req.Query) == "" {
		return pipeline.MsgBlankQuery, false
	}
	if err := s.validate.Struct(req); err != nil {
		return "max_results must be between 1 and 10", false
	}
	if req.MaxResults == nil {
		n := s.defaultMax
		req.MaxResults = &n
	}
	return "", true
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrBlankQuery) {
		writeError(w, http.StatusBadRequest, pipeline.MsgBlankQuery)
		return
	}
	s.logger.Warn().Err(err).Msg("run ended early")
	writeError(w, http.StatusServiceUnavailable, "search was cancelled")
}

// buildResponse assembles the reply for a finished run. The document is
// only produced when there is something to export.
func (s *Server) buildResponse(query string, results []types.Result) searchResponse {
	resp := searchResponse{
		Query:   query,
		Count:   len(results),
		Results: results,
		Message: pipeline.MsgNoResults,
	}
	if len(results) == 0 {
		return resp
	}

	resp.Message = fmt.Sprintf("検索結果: \"%s\" (%d件)", query, len(results))
	now := s.now()
	if doc := export.Render(results, query, now); doc != "" {
		resp.Document = doc
		resp.Filename = export.Filename(query, now)
	}
	return resp
}

// sendEvent writes one SSE event with a JSON payload.
func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
