package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/openlio/liocfg/pkg/config"
	"github.com/openlio/liocfg/pkg/configstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeOpError maps engine errors to HTTP statuses: malformed or
// policy-violating input is the client's fault, everything else is
// ours.
func writeOpError(w http.ResponseWriter, err error) {
	var parseErr *config.ParseError
	var policyErr *config.PolicyError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &policyErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, configstore.ErrNothingToUndo):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, StatusResponse{
		Uptime:        time.Since(s.startTime).Truncate(time.Second).String(),
		BackendLive:   s.live,
		SnapshotDepth: s.store.Depth(),
		Objects:       s.store.ObjectCounts(),
		SavePath:      s.store.SavePath(),
	})
}

// parseFilter maps the ?filter= query parameter to a node filter.
func parseFilter(r *http.Request) config.NodeFilter {
	switch r.URL.Query().Get("filter") {
	case "nodefault":
		return config.FilterNoDefault
	case "nomissing":
		return config.FilterNoMissing
	case "onlymissing":
		return config.FilterOnlyMissing
	default:
		return nil
	}
}

func (s *Server) configShowHandler(w http.ResponseWriter, r *http.Request) {
	text, err := s.store.Dump(r.URL.Query().Get("pattern"), parseFilter(r))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]string{"config": text})
}

func (s *Server) configSetHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	nodes, err := s.store.Set(req.Text)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]int{"updated": len(nodes)})
}

func (s *Server) configDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	nodes, err := s.store.Delete(req.Pattern)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]int{"deleted": len(nodes)})
}

func (s *Server) restoreHandler(w http.ResponseWriter, _ *http.Request) {
	nodes, err := s.store.Restore("")
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]int{"loaded": len(nodes)})
}

func (s *Server) saveHandler(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.store.Save("", ""); err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]string{"path": s.store.SavePath()})
}

func (s *Server) undoHandler(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Undo(); err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, map[string]int{"depth": s.store.Depth()})
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	nodes, err := s.store.Search(pattern, parseFilter(r))
	if err != nil {
		writeOpError(w, err)
		return
	}
	paths := make([]string, len(nodes))
	for i, node := range nodes {
		paths[i] = node.PathStr()
	}
	writeOK(w, paths)
}

func (s *Server) diffHandler(w http.ResponseWriter, _ *http.Request) {
	diff, err := s.store.DiffLive()
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeOK(w, DiffResponse{
		Created: nodePaths(diff.Created),
		Removed: nodePaths(diff.Removed),
		Major:   nodePaths(diff.Major),
		Minor:   nodePaths(diff.Minor),
		Summary: diff.Summary(),
	})
}

func nodePaths(nodes []*config.Node) []string {
	paths := make([]string, len(nodes))
	for i, node := range nodes {
		paths[i] = node.PathStr()
	}
	return paths
}

func (s *Server) applyHandler(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	// An empty body selects the incremental mode; anything else must
	// decode.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	applier, err := s.store.Apply(req.Mode == "bruteforce")
	if err != nil {
		writeOpError(w, err)
		return
	}
	resp := ApplyResponse{Total: applier.Len()}
	for {
		desc, ok, err := applier.Next()
		if err != nil {
			resp.Steps = append(resp.Steps, desc)
			writeJSON(w, http.StatusInternalServerError,
				Response{Success: false, Data: resp, Error: err.Error()})
			return
		}
		if !ok {
			break
		}
		resp.Steps = append(resp.Steps, desc)
		resp.Applied++
	}
	writeOK(w, resp)
}

func (s *Server) verifyHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.Verify())
}

func (s *Server) historyHandler(w http.ResponseWriter, _ *http.Request) {
	var entries []HistoryEntry
	for _, e := range s.store.History().List() {
		entries = append(entries, HistoryEntry{
			ID:   e.ID,
			Time: e.Time.Format(time.RFC3339),
			Op:   e.Op,
		})
	}
	writeOK(w, entries)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventBuf == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeOK(w, s.eventBuf.LatestMatching(limit, r.URL.Query().Get("match")))
}
