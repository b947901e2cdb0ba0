package httpapi

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/engine"
)

// CallerHeader carries the address the request acts as.
const CallerHeader = "X-Caller"

// Options configures optional parts of the server.
type Options struct {
	// Token and Deed enable the /v1/assets routes used to fund accounts
	// against the in-process reference assets.
	Token *assets.Token
	Deed  *assets.Deed

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// RateLimit is the per-caller request rate. Zero disables limiting.
	RateLimit rate.Limit
	RateBurst int

	Logger *slog.Logger
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine *engine.Engine
	token  *assets.Token
	deed   *assets.Deed
	logger *slog.Logger
	router *mux.Router
}

// New builds the router for e.
func New(e *engine.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		engine: e,
		token:  opts.Token,
		deed:   opts.Deed,
		logger: logger,
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		v1.Use(newCallerLimiter(opts.RateLimit, burst, logger).Middleware)
	}
	v1.Use(s.logRequests)

	// Mutations, one route per journaled operation.
	v1.HandleFunc("/lands/{id}/bids", s.operation(engine.OpParticipateInAuction, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/lands/{id}/bids/delegated", s.operation(engine.OpParticipateInAuctionFor, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/lands/{id}/redeem", s.operation(engine.OpRedeemWonLand, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/lands/{id}/cashback", s.operation(engine.OpRedeemCashback, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/lands/{id}/sale", s.operation(engine.OpPutLandOnSale, "land_id")).Methods(http.MethodPut)
	v1.HandleFunc("/lands/{id}/purchase", s.operation(engine.OpBuyLand, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/lands/{id}/offers", s.operation(engine.OpOfferToBuyLand, "land_id")).Methods(http.MethodPost)
	v1.HandleFunc("/offers/{id}/response", s.operation(engine.OpRespondToBuyOffer, "offer_id")).Methods(http.MethodPost)

	v1.HandleFunc("/admin/pause", s.operation(engine.OpPause, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/unpause", s.operation(engine.OpUnpause, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/duration", s.operation(engine.OpSetAuctionLandDuration, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/delegate", s.operation(engine.OpSetApproved, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/extract", s.operation(engine.OpExtractTokens, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/owner", s.operation(engine.OpTransferOwnership, "")).Methods(http.MethodPost)
	v1.HandleFunc("/admin/settings", s.settings).Methods(http.MethodGet)

	// Reads.
	v1.HandleFunc("/lands/{id}", s.getLand).Methods(http.MethodGet)
	v1.HandleFunc("/offers/{id}", s.getOffer).Methods(http.MethodGet)
	v1.HandleFunc("/auctions/active", s.activeLands).Methods(http.MethodGet)
	v1.HandleFunc("/sales", s.sales).Methods(http.MethodGet)
	v1.HandleFunc("/me/offers", s.myOffers).Methods(http.MethodGet)
	v1.HandleFunc("/me/lands", s.myLands).Methods(http.MethodGet)

	if s.token != nil {
		v1.HandleFunc("/assets/token/mint", s.mintToken).Methods(http.MethodPost)
		v1.HandleFunc("/assets/token/approve", s.approveToken).Methods(http.MethodPost)
		v1.HandleFunc("/assets/token/balances/{address}", s.tokenBalance).Methods(http.MethodGet)
	}
	if s.deed != nil {
		v1.HandleFunc("/assets/deeds/{id}/approve", s.approveDeed).Methods(http.MethodPost)
		v1.HandleFunc("/assets/deeds/{id}", s.deedOwner).Methods(http.MethodGet)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "paused": s.engine.Paused()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"caller", r.Header.Get(CallerHeader),
			"status", rec.status,
		)
	})
}
