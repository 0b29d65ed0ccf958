package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/cors"

	"github.com/w3f-grants-archive/validated-streams/chain"
	"github.com/w3f-grants-archive/validated-streams/network/gossip"
	"github.com/w3f-grants-archive/validated-streams/proofs"
)

// NodeInfo reports libp2p host details for the status endpoint.
type NodeInfo interface {
	HostID() peer.ID
	ListenAddrs() []ma.Multiaddr
	PeerCount() int
}

// StatusConfig carries the node collaborators the status API reads from.
type StatusConfig struct {
	Session    NodeInfo
	Metrics    *gossip.Metrics
	Store      proofs.Store
	Ledger     *chain.Ledger
	Pool       *chain.MemPool
	Validator  Validator
	Validators int
	Target     int
}

// StatusServer exposes read-only node state and an event submission
// endpoint over HTTP for dashboards and operator tooling.
type StatusServer struct {
	cfg    StatusConfig
	router *mux.Router
	server *http.Server
	port   int
}

// NewStatusServer creates the HTTP status server on the given port.
func NewStatusServer(port int, cfg StatusConfig) *StatusServer {
	s := &StatusServer{cfg: cfg, port: port}
	s.setupRoutes()
	return s
}

// Handler returns the configured HTTP handler.
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

func (s *StatusServer) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.getStatus).Methods("GET")
	api.HandleFunc("/health", s.getHealth).Methods("GET")
	api.HandleFunc("/events/{id}", s.getEvent).Methods("GET")
	api.HandleFunc("/events", s.postEvent).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.router.Use(c.Handler)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.jsonMiddleware)
}

// Start serves HTTP until Stop is called. Serve errors other than a clean
// shutdown are returned to the caller.
func (s *StatusServer) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Infof("status API listening on port %d", s.port)
	return s.server.ListenAndServe()
}

// Stop closes the HTTP server.
func (s *StatusServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *StatusServer) getStatus(w http.ResponseWriter, r *http.Request) {
	height, _ := s.cfg.Ledger.Height()
	witnessed, err := s.cfg.Store.Events()
	if err != nil {
		s.writeError(w, "Failed to read proof store", http.StatusInternalServerError)
		return
	}

	addrs := make([]string, 0)
	for _, a := range s.cfg.Session.ListenAddrs() {
		addrs = append(addrs, a.String())
	}

	response := map[string]interface{}{
		"node_id":            s.cfg.Session.HostID().String(),
		"listen_addrs":       addrs,
		"peers":              s.cfg.Session.PeerCount(),
		"topic":              gossip.TopicWitnessedEvents,
		"validators":         s.cfg.Validators,
		"attestation_target": s.cfg.Target,
		"chain_height":       height,
		"events_witnessed":   witnessed,
		"events_included":    s.cfg.Ledger.EventCount(),
		"pool":               s.cfg.Pool.GetStats(),
		"network":            s.cfg.Metrics.GetSnapshot(),
		"timestamp":          time.Now().Unix(),
	}

	s.writeJSON(w, response)
}

func (s *StatusServer) getHealth(w http.ResponseWriter, r *http.Request) {
	height, _ := s.cfg.Ledger.Height()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"height":    height,
	}
	s.writeJSON(w, health)
}

func (s *StatusServer) getEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := gossip.EventIDFromHex(vars["id"])
	if err != nil {
		s.writeError(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	count, err := s.cfg.Store.Count(id)
	if err != nil {
		s.writeError(w, "Failed to read proof store", http.StatusInternalServerError)
		return
	}

	sigs, err := s.cfg.Store.Proofs(id)
	if err != nil {
		s.writeError(w, "Failed to read proof store", http.StatusInternalServerError)
		return
	}
	witnesses := make(map[string]string, len(sigs))
	for pub, sig := range sigs {
		witnesses[pub] = hex.EncodeToString(sig)
	}

	included, _ := s.cfg.Ledger.IsIncluded(id)

	response := map[string]interface{}{
		"id":           id.String(),
		"attestations": count,
		"target":       s.cfg.Target,
		"witnesses":    witnesses,
		"included":     included,
	}
	if h, ok := s.cfg.Ledger.InclusionHeight(id); ok {
		response["inclusion_height"] = h
	}

	s.writeJSON(w, response)
}

func (s *StatusServer) postEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := gossip.EventIDFromHex(req.ID)
	if err != nil {
		s.writeError(w, "Invalid event id", http.StatusBadRequest)
		return
	}

	reply, err := s.cfg.Validator.HandleClientRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, "Failed to witness event", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"id":     id.String(),
		"status": reply,
	}
	s.writeJSON(w, response)
}

// Helper methods

func (s *StatusServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *StatusServer) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	})
}

// Middleware

func (s *StatusServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Debugf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

func (s *StatusServer) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
