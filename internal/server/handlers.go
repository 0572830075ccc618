package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/archive"
	"github.com/flo-mic/stackdash/internal/discovery"
	"github.com/flo-mic/stackdash/internal/entitlements"
	"github.com/flo-mic/stackdash/internal/run"
)

// maxRunBody bounds the POST /api/ci/run request body.
const maxRunBody = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Health{Status: "ok", Edition: s.ents.Edition})
}

// handleInventory never fails: a missing scan root is an empty inventory.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inventory())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (api.Stack, bool) {
	st, err := discovery.Lookup(s.cfg.ScanRoot, r.PathValue("host"), r.PathValue("stack"))
	if err != nil {
		http.Error(w, "stack not found", http.StatusNotFound)
		return api.Stack{}, false
	}
	return st, true
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, discovery.Detail(r.Context(), st))
}

// handleBundle streams the stack directory as tar.gz. Plaintext env files
// and .git are left out; sops-encrypted files are kept.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if !s.ents.Allows(entitlements.FeatureWizards) {
		http.Error(w, "bundles are not included in this license", http.StatusForbidden)
		return
	}
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.Name+".tar.gz"))
	skip := archive.Excluding(archive.BundleExcludes, discovery.IsSopsName)
	if err := archive.WriteDir(w, st.Path, st.Name, skip); err != nil {
		s.logger.Error("bundle failed", "host", r.PathValue("host"), "stack", st.Name, "err", err)
		return
	}
	s.logger.Info("bundle sent", "host", r.PathValue("host"), "stack", st.Name)
}

// handleRun streams a run as newline-delimited JSON. The body is optional;
// an empty body starts the default mode.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRunBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	src, err := s.starter.Start(req.Mode, s.ents)
	if err != nil {
		startError(w, err)
		return
	}

	runID := newRunID()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Run-ID", runID)
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(&flushWriter{w: w})
	s.stream(r.Context(), runID, req.Mode, "ndjson", src, func(ev api.Event) error {
		return enc.Encode(ev)
	})
}

// startError maps a refused run to its HTTP status. Nothing has been
// streamed yet when this is called.
func startError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, run.ErrNotEntitled):
		http.Error(w, "ci api is not included in this license", http.StatusForbidden)
	case errors.Is(err, run.ErrUnknownMode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// flushWriter wraps a ResponseWriter and flushes after each write for streaming.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := http.NewResponseController(fw.w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}
