package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/elsanchez/smart-extract/internal/registry"
)

// Server es el servidor HTTP del daemon
type Server struct {
	http     *http.Server
	listener net.Listener
	log      zerolog.Logger
}

// NewRouter arma las rutas. Las rutas /rpc solo existen si serveRegistry es true y hay
// clave del registro; /api/accounts solo si el daemon administra un pool local.
func NewRouter(h *Handlers, serveRegistry bool, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/extract-instagram", h.HandleExtract).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if h.accounts != nil {
		api.HandleFunc("/accounts", h.HandleListAccounts).Methods(http.MethodGet)
		api.HandleFunc("/accounts", h.HandleCreateAccount).Methods(http.MethodPost)
		api.HandleFunc("/accounts/{id:[0-9]+}", h.HandleDeleteAccount).Methods(http.MethodDelete)
		api.HandleFunc("/accounts/{id:[0-9]+}/reactivate", h.HandleReactivate).Methods(http.MethodPost)
		api.HandleFunc("/accounts/{id:[0-9]+}/disable", h.HandleDisable).Methods(http.MethodPost)
		api.HandleFunc("/accounts/{id:[0-9]+}/session", h.HandleSetSession).Methods(http.MethodPost)
	}
	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/extractions", h.HandleHistory).Methods(http.MethodGet)

	if serveRegistry && h.registryKey == "" {
		log.Warn().Msg("registry rpc not mounted: no registry key configured")
	}
	if serveRegistry && h.store != nil && h.registryKey != "" {
		auth := requireBearer(h.registryKey)
		r.Handle(registry.NextAccountPath, auth(http.HandlerFunc(h.HandleRPCNextAccount))).Methods(http.MethodPost)
		r.Handle(registry.UpdateAccountPath, auth(http.HandlerFunc(h.HandleRPCUpdateAccount))).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "route not found")
	})

	return cors(recovery(log)(requestLogger(log)(r)))
}

// NewServer crea el servidor en addr
func NewServer(addr string, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start abre el listener y sirve en background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("Server listening")

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}()
	return nil
}

// Addr retorna la dirección real (útil con puerto 0)
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.http.Addr
	}
	return s.listener.Addr().String()
}

// Stop cierra el servidor esperando las peticiones en curso
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Server stopping...")
	return s.http.Shutdown(ctx)
}
