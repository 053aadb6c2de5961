// Package httpapi exposes the shop ledger over a JSON REST API under
// /api/v1. Every response uses the {success, data|error} envelope.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	csrf          *csrfSigner
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		csrf:          newCSRFSigner(),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", csrfHeader, managerPINHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(limitBody)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireCSRF)

		r.Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleCashier, domain.RoleAdmin))

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", a.handleListSales)
				r.Post("/", a.handleCreateSale)
				r.Get("/summary/daily", a.handleDailySalesSummary)
				r.Get("/{saleID}", a.handleGetSale)
				r.Patch("/{saleID}", a.handleUpdateSale)
				r.Patch("/{saleID}/status", a.handleSetSaleStatus)
				r.Post("/{saleID}/payments", a.handleCollectSalePayment)
				r.Delete("/{saleID}", a.handleDeleteSale)
			})

			r.Route("/receivables", func(r chi.Router) {
				r.Get("/", a.handleListReceivables)
				r.Get("/summary", a.handleReceivableSummary)
				r.Post("/refresh-overdue", a.handleRefreshOverdue)
			})

			r.Route("/vendors", func(r chi.Router) {
				r.Get("/", a.handleListVendors)
				r.Post("/", a.handleCreateVendor)
				r.With(a.requireAuth(domain.RoleAdmin)).Post("/reconcile", a.handleReconcileAllVendors)
				r.Route("/{vendorID}", func(r chi.Router) {
					r.Get("/", a.handleGetVendor)
					r.Put("/", a.handleUpdateVendor)
					r.Delete("/", a.handleDeleteVendor)
					r.With(a.requireAuth(domain.RoleAdmin)).Post("/reconcile", a.handleReconcileVendor)

					r.Get("/purchases", a.handleListPurchases)
					r.Post("/purchases", a.handleCreatePurchase)
					r.Get("/purchases/{purchaseID}", a.handleGetPurchase)
					r.Put("/purchases/{purchaseID}", a.handleUpdatePurchase)
					r.Delete("/purchases/{purchaseID}", a.handleDeletePurchase)
					r.Post("/purchases/{purchaseID}/payments", a.handleCollectPurchasePayment)
				})
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Post("/", a.handleCreateProduct)
				r.Get("/low-stock", a.handleLowStock)
				r.Get("/{productID}", a.handleGetProduct)
				r.Put("/{productID}", a.handleUpdateProduct)
				r.Delete("/{productID}", a.handleDeleteProduct)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", a.handleListExpenses)
				r.Post("/", a.handleCreateExpense)
				r.Get("/stats", a.handleExpenseStats)
				r.Get("/{expenseID}", a.handleGetExpense)
				r.Put("/{expenseID}", a.handleUpdateExpense)
				r.Delete("/{expenseID}", a.handleDeleteExpense)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))

			r.Get("/reports/daily", a.handleDailyReport)
			r.Get("/reports/daily/{date}", a.handleDailyReport)
			r.Get("/reports/monthly/{year}/{month}", a.handleMonthlyReport)
			r.Get("/reports/yearly/{year}", a.handleYearlyReport)
			r.Get("/audit-logs", a.handleAuditLogs)
			r.Get("/users/cashiers", a.handleListCashiers)
			r.Post("/users/cashiers", a.handleCreateCashier)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				a.writeError(w, r, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				a.writeError(w, r, http.StatusUnauthorized, err)
				return
			}
			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				a.writeError(w, r, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)

		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError sends the failure envelope. 5xx bodies carry a generic message;
// the cause only goes to the log.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// fail maps a service or store error to its status code.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.writeError(w, r, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, payment.ErrAlreadySettled),
		errors.Is(err, payment.ErrOverpayment),
		errors.Is(err, payment.ErrInvalidAmounts),
		errors.Is(err, payment.ErrNonPositiveAmount):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, errInvalidPIN):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return &service.ValidationError{Err: service.ErrValidation, Details: "invalid request body: " + err.Error()}
	}
	if decoder.More() {
		return &service.ValidationError{Err: service.ErrValidation, Details: "invalid request body: trailing data"}
	}
	return nil
}

func parsePositive(raw string, fallback int, max int) int {
	value := fallback
	if parsed, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && parsed > 0 {
		value = parsed
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

// parseDateRange reads from/to query values as YYYY-MM-DD days. The range
// is [from, to+1 day).
func parseDateRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, &service.ValidationError{Err: service.ErrValidation, Details: "from must be YYYY-MM-DD"}
		}
		from = &day
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, &service.ValidationError{Err: service.ErrValidation, Details: "to must be YYYY-MM-DD"}
		}
		end := day.AddDate(0, 0, 1)
		to = &end
	}
	return from, to, nil
}
