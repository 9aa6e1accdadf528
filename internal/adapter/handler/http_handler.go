package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/rl1809/medstore/internal/core/domain"
	"github.com/rl1809/medstore/internal/core/service"
	"github.com/rl1809/medstore/internal/port"
)

const (
	maxBodyBytes    = 1 << 20
	signatureHeader = "Stripe-Signature"
)

type HTTPHandler struct {
	orderService    *service.OrderService
	checkoutService *service.CheckoutService
	reconciler      *service.WebhookReconciler
	orders          port.OrderRepository
	logger          *zap.Logger
}

type CheckoutHTTPRequest struct {
	Items      []domain.LineItem `json:"items"`
	SuccessURL string            `json:"successUrl,omitempty"`
	CancelURL  string            `json:"cancelUrl,omitempty"`
	OrderID    string            `json:"orderId"`
}

type CheckoutHTTPResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type CreateOrderHTTPRequest struct {
	Email           string            `json:"email,omitempty"`
	Items           []domain.LineItem `json:"items"`
	ShippingAddress *domain.Address   `json:"shippingAddress"`
	BillingAddress  *domain.Address   `json:"billingAddress,omitempty"`
}

type UpdateOrderHTTPRequest struct {
	Status         *domain.OrderStatus   `json:"status,omitempty"`
	PaymentStatus  *domain.PaymentStatus `json:"paymentStatus,omitempty"`
	TrackingNumber *string               `json:"trackingNumber,omitempty"`
	Carrier        *string               `json:"carrier,omitempty"`
}

type OrderHTTPResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type TrackingHTTPResponse struct {
	Success  bool                   `json:"success"`
	Order    domain.Order           `json:"order"`
	Timeline []domain.TrackingEvent `json:"timeline"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewHTTPHandler(
	orderService *service.OrderService,
	checkoutService *service.CheckoutService,
	reconciler *service.WebhookReconciler,
	orders port.OrderRepository,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orderService:    orderService,
		checkoutService: checkoutService,
		reconciler:      reconciler,
		orders:          orders,
		logger:          logger,
	}
}

// Routes builds the API router. The webhook route sits outside authentication and
// rate limiting: Stripe signs its requests and retries on its own schedule.
// Tracking is rate limited by client IP but never authenticated.
func (h *HTTPHandler) Routes(auth *Authenticator, limiter port.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.With(RateLimit(limiter, h.logger)).Get("/orders/track/{orderNumber}", h.TrackOrder)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(RateLimit(limiter, h.logger))

			r.Post("/checkout", h.CreateCheckoutSession)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders/{id}", h.GetOrder)
			r.Patch("/orders/{id}", h.UpdateOrder)
		})
	})

	return r
}

func (h *HTTPHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutHTTPRequest
	if err := decodeBody(w, r, checkoutSchema, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, CheckoutHTTPResponse{Success: false, Error: err.Error()})
		return
	}

	session, err := h.checkoutService.CreateSession(r.Context(), service.CheckoutInput{
		OrderID:    req.OrderID,
		Items:      req.Items,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Customer:   IdentityFromContext(r.Context()),
	})
	if err != nil {
		status, message := errorStatus(err)
		writeJSON(w, r, status, CheckoutHTTPResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, r, http.StatusOK, CheckoutHTTPResponse{
		Success:   true,
		SessionID: session.ID,
		URL:       session.URL,
	})
}

// StripeWebhook hands the body to the reconciler byte for byte; the signature covers the raw payload.
func (h *HTTPHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "cannot read body"})
		return
	}

	if _, err := h.reconciler.Handle(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "webhook signature verification failed"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "webhook handler failed"})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]bool{"received": true})
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderHTTPRequest
	if err := decodeBody(w, r, createOrderSchema, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, OrderHTTPResponse{Success: false, Error: err.Error()})
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderInput{
		Email:           req.Email,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}, IdentityFromContext(r.Context()))
	if err != nil {
		status, message := errorStatus(err)
		writeJSON(w, r, status, OrderHTTPResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, r, http.StatusCreated, OrderHTTPResponse{Success: true, Order: order})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"), IdentityFromContext(r.Context()))
	if err != nil {
		status, message := errorStatus(err)
		writeJSON(w, r, status, OrderHTTPResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, r, http.StatusOK, OrderHTTPResponse{Success: true, Order: order})
}

func (h *HTTPHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeJSON(w, r, http.StatusUnauthorized, OrderHTTPResponse{Success: false, Error: service.ErrUnauthenticated.Error()})
		return
	}
	if !identity.Privileged() {
		writeJSON(w, r, http.StatusForbidden, OrderHTTPResponse{Success: false, Error: service.ErrForbidden.Error()})
		return
	}

	var req UpdateOrderHTTPRequest
	if err := decodeBody(w, r, updateOrderSchema, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, OrderHTTPResponse{Success: false, Error: err.Error()})
		return
	}

	order, err := h.orderService.UpdateOrder(r.Context(), chi.URLParam(r, "id"), domain.OrderUpdate{
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	}, identity)
	if err != nil {
		status, message := errorStatus(err)
		writeJSON(w, r, status, OrderHTTPResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, r, http.StatusOK, OrderHTTPResponse{Success: true, Order: order})
}

func (h *HTTPHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orderService.Track(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		status, message := errorStatus(err)
		writeJSON(w, r, status, errorResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, r, http.StatusOK, TrackingHTTPResponse{
		Success:  true,
		Order:    result.Order,
		Timeline: result.Timeline,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// errorStatus maps service errors to a status code and a message safe to show the caller.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, service.ErrUnauthenticated.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, domain.ErrOrderNotFound.Error()
	case errors.Is(err, service.ErrGateway):
		return http.StatusInternalServerError, service.ErrGateway.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, schema *requestSchema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("cannot read body")
	}
	if err := schema.Validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, data)
}
