package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/crawlkit/frontier/internal/frontier"
	"github.com/crawlkit/frontier/internal/runtime"
	queuesvc "github.com/crawlkit/frontier/internal/services/queues"
	logpkg "github.com/crawlkit/frontier/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	svc    *queuesvc.Service
	logger logpkg.Logger
}

func New(rt *runtime.Runtime, logger logpkg.Logger) (*Server, error) {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	svc, err := queuesvc.NewWithLogger(rt, logger.With(logpkg.Component("queues")))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, svc: svc, logger: logger, srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/queues", s.handleList)
	mux.HandleFunc("/v1/queues/create", s.handleCreate)
	mux.HandleFunc("/v1/queues/enqueue", s.handleEnqueue)
	mux.HandleFunc("/v1/queues/fetch", s.handleFetch)
	mux.HandleFunc("/v1/queues/reclaim", s.handleReclaim)
	mux.HandleFunc("/v1/queues/stats", s.handleStats)
	return s, nil
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		s.svc.Close()
		return nil
	case err := <-errCh:
		s.svc.Close()
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
	s.svc.Close()
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, frontier.ErrInvalidQueueName), errors.Is(err, frontier.ErrInvalidOwner):
		code = http.StatusBadRequest
	case errors.Is(err, frontier.ErrDedupMismatch):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createReq struct {
	Queue string                `json:"queue"`
	Dedup *frontier.DedupConfig `json:"dedup,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.svc.Create(r.Context(), req.Queue, req.Dedup); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type enqueueReq struct {
	Queue     string          `json:"queue"`
	Items     []frontier.Item `json:"items"`
	Forefront bool            `json:"forefront"`
	NowMs     int64           `json:"now_ms"`
}

type enqueueResp struct {
	Inserted []string `json:"inserted"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	added, err := s.svc.Enqueue(r.Context(), req.Queue, req.Items, req.Forefront, req.NowMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enqueueResp{Inserted: added})
}

type fetchReq struct {
	Queue     string `json:"queue"`
	BatchSize int    `json:"batch_size"`
	OwnerID   string `json:"owner_id"`
	LeaseMs   int64  `json:"lease_ms"`
	NowMs     int64  `json:"now_ms"`
}

type fetchResp struct {
	Items []frontier.WorkItem `json:"items"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req fetchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	got, err := s.svc.Fetch(r.Context(), req.Queue, req.BatchSize, req.OwnerID, req.LeaseMs, req.NowMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResp{Items: got})
}

type reclaimReq struct {
	Queue string `json:"queue"`
	NowMs int64  `json:"now_ms"`
	Max   int    `json:"max"`
}

type reclaimResp struct {
	Reclaimed int `json:"reclaimed"`
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req reclaimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	moved, err := s.svc.Reclaim(r.Context(), req.Queue, req.NowMs, req.Max)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reclaimResp{Reclaimed: moved})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	names, err := s.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"queues": names})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("queue")
	st, err := s.svc.Stats(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
