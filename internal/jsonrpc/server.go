// Package jsonrpc exposes engine.Node's client-facing operations
// (lookup/put/get/delete/peers) as a small JSON-over-HTTP API, grounded
// on the teacher's internal/server gRPC split but rendered as plain
// net/http handlers since no pack example pulls in a third-party HTTP
// router for this: every retrieved repo that serves JSON over HTTP
// (e.g. the "retorded-inf-3200" DHT assignment) reaches for
// encoding/json + net/http directly.
package jsonrpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chordmesh/internal/engine"
	"chordmesh/internal/logger"
	"chordmesh/internal/ring"
	"chordmesh/internal/store"
)

const requestTimeout = 10 * time.Second

// Server wraps an engine.Node behind an HTTP API.
type Server struct {
	node *engine.Node
	lgr  logger.Logger
	http *http.Server
}

// New builds a Server bound to addr; call Start to accept connections.
func New(addr string, node *engine.Node, lgr logger.Logger) *Server {
	s := &Server{node: node, lgr: lgr.Named("jsonrpc")}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/lookup/", s.handleLookup)
	mux.HandleFunc("/v1/resource/", s.handleResource)
	mux.HandleFunc("/v1/peers", s.handlePeers)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server until Stop is called.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("jsonrpc: serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type lookupResponse struct {
	Owner string `json:"owner"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rawKey, ok := keyFromPath(r.URL.Path, "/v1/lookup/")
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	owner, err := s.node.Lookup(ctx, ring.FromString(rawKey))
	if err != nil {
		s.lgr.Warn("lookup failed", logger.F("err", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Owner: owner.Hex()})
}

type resourceResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	path, ok := keyFromPath(r.URL.Path, "/v1/resource/")
	if !ok {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	key := ring.FromString(path)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		res, err := s.node.Get(ctx, key)
		if err != nil {
			if err == store.ErrNotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resourceResponse{Key: path, Value: hex.EncodeToString(res.Value)})

	case http.MethodPut:
		var body []byte
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := s.node.Put(ctx, key, path, body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := s.node.Delete(ctx, key); err != nil {
			if err == store.ErrNotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type peersResponse struct {
	Self ringEntry `json:"self"`
}

type ringEntry struct {
	ID string `json:"id"`
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, peersResponse{Self: ringEntry{ID: s.node.ID().Hex()}})
}

func keyFromPath(path, prefix string) (string, bool) {
	if len(path) <= len(prefix) {
		return "", false
	}
	return path[len(prefix):], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
