package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/museo-app/marketplace/internal/order/application"
	"github.com/museo-app/marketplace/internal/order/domain"
	paymentDomain "github.com/museo-app/marketplace/internal/payment/domain"
)

type OrderService interface {
	CancelOrder(ctx context.Context, requesterID, orderID, reason string) (application.CancelResult, error)
	GetOrder(ctx context.Context, requesterID, orderID string) (application.OrderView, error)
}

type Handler struct {
	log     *slog.Logger
	service OrderService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service OrderService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

type cancelledOrder struct {
	domain.Order
	Refund *paymentDomain.Refund `json:"refund,omitempty"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type errResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/orders/{orderId}", h.getOrder)
	r.Post("/orders/{orderId}/cancel", h.cancelOrder)
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid request body"})
		return
	}

	res, err := h.service.CancelOrder(ctx, Requester(ctx), orderID, req.Reason)
	if err != nil {
		h.fail(w, span, "cancel order", orderID, err, "You do not have permission to cancel this order")
		return
	}

	span.SetAttributes(attribute.Bool("order.refunded", res.Refund != nil))
	writeJSON(w, http.StatusOK, okResponse{
		Success: true,
		Message: res.Message,
		Data:    cancelledOrder{Order: res.Order, Refund: res.Refund},
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	ctx, span := h.tracer.Start(r.Context(), "GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	view, err := h.service.GetOrder(ctx, Requester(ctx), orderID)
	if err != nil {
		h.fail(w, span, "get order", orderID, err, "You do not have permission to view this order")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true, Data: view})
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, op, orderID string, err error, forbidden string) {
	status, msg := errorStatus(err, forbidden)
	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		h.log.Error(op+" failed", "order_id", orderID, "err", err)
	}
	writeJSON(w, status, errResponse{Error: msg})
}

// errorStatus maps a workflow error to its HTTP status and a message that is
// safe to show the caller. forbidden is the route's own 403 message.
func errorStatus(err error, forbidden string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "Cancellation reason must be 1-500 characters"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, forbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return http.StatusBadRequest, "Order is already cancelled"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, "Cannot cancel order that has been shipped or delivered"
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusInternalServerError, "Refund failed. Order was not cancelled."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
