package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cryptoprofit/internal/accrual"
	"cryptoprofit/internal/auth"
	"cryptoprofit/internal/health"
	"cryptoprofit/internal/httputil"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/miners"
	"cryptoprofit/internal/referral"
)

type RouterDeps struct {
	AuthHandler     *auth.Handler
	LedgerHandler   *ledger.Handler
	MinersHandler   *miners.Handler
	ReferralHandler *referral.Handler
	HealthHandler   *health.Handler
	AccrualRunner   *accrual.Runner
	AuthService     *auth.Service
	EventsWSHandler http.Handler
	InternalToken   string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS middleware for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		// The gateway signs its callbacks; no bearer auth here.
		r.Post("/webhooks/crypto-payment", d.LedgerHandler.Webhook)

		r.Get("/referrals/validate", d.ReferralHandler.Validate)
		r.Get("/miners/catalog", d.MinersHandler.Catalog)
		r.Get("/events/ws", d.EventsWSHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))

			r.Get("/me", withUser(d.AuthHandler.Me))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", withUser(d.LedgerHandler.Balance))
				r.Get("/history", withUser(d.LedgerHandler.History))
				r.Get("/deposit-address", withUser(d.LedgerHandler.DepositAddress))
				r.Post("/withdraw", withUser(d.LedgerHandler.Withdraw))
				r.Post("/test-deposit", withUser(d.LedgerHandler.TestDeposit))
			})

			r.Route("/miners", func(r chi.Router) {
				r.Get("/positions", withUser(d.MinersHandler.Positions))
				r.Post("/purchase", withUser(d.MinersHandler.Purchase))
				r.Post("/positions/{id}/toggle", func(w http.ResponseWriter, req *http.Request) {
					userID, ok := UserID(req)
					if !ok {
						httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
						return
					}
					d.MinersHandler.Toggle(w, req, userID, chi.URLParam(req, "id"))
				})
			})

			r.Route("/referrals", func(r chi.Router) {
				r.Get("/", withUser(d.ReferralHandler.Info))
				r.Get("/list", withUser(d.ReferralHandler.List))
			})
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuth(d.InternalToken))
		r.Post("/withdrawals/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
			d.LedgerHandler.ResolveWithdrawal(w, req, chi.URLParam(req, "id"))
		})
		r.Get("/reconcile/{userId}", func(w http.ResponseWriter, req *http.Request) {
			d.LedgerHandler.Reconcile(w, req, chi.URLParam(req, "userId"))
		})
		r.Post("/accrual/run", func(w http.ResponseWriter, req *http.Request) {
			summary, err := d.AccrualRunner.Run(req.Context())
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, summary)
		})
	})

	return r
}

func withUser(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}
