package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/museo-app/marketplace/internal/order/domain"
	paymentDomain "github.com/museo-app/marketplace/internal/payment/domain"
)

const (
	MaxReasonLength = 500
	DefaultReason   = "Order cancelled"
)

type CancelResult struct {
	Order   domain.Order
	Refund  *paymentDomain.Refund
	Message string
}

// NormalizeReason trims the free-text reason. An empty reason becomes
// DefaultReason and anything longer than MaxReasonLength runes is rejected.
func NormalizeReason(raw string) (reason string, given bool, err error) {
	r := strings.TrimSpace(raw)
	if r == "" {
		return DefaultReason, false, nil
	}
	if utf8.RuneCountInString(r) > MaxReasonLength {
		return "", false, fmt.Errorf("%w: cancellation reason must be 1-%d characters", domain.ErrInvalidArgument, MaxReasonLength)
	}
	return r, true, nil
}

// CancelOrder cancels an order on behalf of its buyer or one of its sellers.
//
// A paid order is refunded before anything else is touched; if the refund
// fails nothing changes. Stock is then returned and the order row is written
// last, conditioned on it still being open. The whole span runs under a
// per-order lock.
func (s *Service) CancelOrder(ctx context.Context, requesterID, orderID, rawReason string) (CancelResult, error) {
	if requesterID == "" {
		return CancelResult{}, domain.ErrUnauthenticated
	}
	reason, given, err := NormalizeReason(rawReason)
	if err != nil {
		return CancelResult{}, err
	}
	if orderID == "" {
		return CancelResult{}, domain.ErrNotFound
	}

	unlock, err := s.locker.Lock(ctx, "order-cancel:"+orderID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("%w: lock order: %v", domain.ErrInternal, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("order lock release failed", "order_id", orderID, "err", err)
		}
	}()

	order, items, by, err := s.loadAuthorized(ctx, requesterID, orderID)
	if err != nil {
		return CancelResult{}, err
	}
	if err := order.Cancellable(); err != nil {
		return CancelResult{}, err
	}

	var refund *paymentDomain.Refund
	switch {
	case order.PaymentStatus == domain.PaymentPaid:
		r, err := s.refund(ctx, order, reason)
		if err != nil {
			s.log.Error("refund failed, order left untouched", "order_id", orderID, "err", err)
			return CancelResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
		}
		refund = &r
	case order.HasPaymentLink():
		if err := s.payments.CancelPaymentLink(ctx, *order.PaymentLinkID); err != nil {
			s.log.Warn("payment link expiry failed", "order_id", orderID, "payment_link_id", *order.PaymentLinkID, "err", err)
		}
	}

	report := s.inventory.Restock(ctx, items)
	if report.Skipped > 0 {
		s.log.Warn("inventory partially restored", "order_id", orderID, "restored", report.Restored, "skipped", report.Skipped)
	}

	// The refund notice goes out even if the final write fails: the money
	// is already moving.
	var notices []domain.Notice
	if refund != nil {
		notices = append(notices, refundNotice(order, *refund))
	}

	updated, err := s.store.UpdateOrderIf(ctx, orderID, order.CancelPatch(s.now()), domain.OpenStatuses)
	if err != nil {
		s.notices.dispatch(ctx, notices...)
		s.log.Error("order cancel write failed", "order_id", orderID, "refunded", refund != nil, "err", err)
		return CancelResult{}, fmt.Errorf("%w: update order: %v", domain.ErrInternal, err)
	}
	if updated == nil {
		s.notices.dispatch(ctx, notices...)
		return CancelResult{}, s.lostRace(ctx, orderID)
	}

	s.notices.dispatch(ctx, append(notices, cancelNotice(*updated, by, reason, given))...)
	s.log.Info("order cancelled", "order_id", orderID, "by", by, "refunded", refund != nil)

	return CancelResult{
		Order:   *updated,
		Refund:  refund,
		Message: cancelMessage(order, refund),
	}, nil
}

func (s *Service) refund(ctx context.Context, order domain.Order, reason string) (paymentDomain.Refund, error) {
	ref := ""
	if order.PaymentLinkID != nil {
		ref = *order.PaymentLinkID
	}
	r, err := s.payments.CreateRefund(ctx, paymentDomain.RefundRequest{
		PaymentReference: ref,
		Amount:           order.TotalCents,
		Reason:           reason,
		IdempotencyKey:   paymentDomain.RefundKey(order.OrderID),
	})
	if err != nil {
		return paymentDomain.Refund{}, err
	}
	if r.Status == paymentDomain.RefundFailed {
		return paymentDomain.Refund{}, fmt.Errorf("%w: refund %s", paymentDomain.ErrRefundRejected, r.ID)
	}
	if r.Amount == 0 {
		r.Amount = order.TotalCents
	}
	return r, nil
}

// lostRace explains a conditional write that matched no row.
func (s *Service) lostRace(ctx context.Context, orderID string) error {
	s.log.Error("order changed during cancellation", "order_id", orderID)

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: reload order: %v", domain.ErrInternal, err)
	}
	if current == nil {
		return domain.ErrNotFound
	}
	if err := current.Cancellable(); err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s was not updated", domain.ErrInternal, orderID)
}

var printer = message.NewPrinter(language.English)

func formatPesos(cents int64) string {
	if cents%100 == 0 {
		return printer.Sprintf("₱%d", cents/100)
	}
	return printer.Sprintf("₱%.2f", float64(cents)/100)
}

func cancelMessage(order domain.Order, refund *paymentDomain.Refund) string {
	if refund == nil {
		return "Order cancelled successfully. Inventory has been restored."
	}
	return fmt.Sprintf("Order cancelled successfully. Inventory has been restored. Refund of %s is being processed.", formatPesos(order.TotalCents))
}

func shortRef(orderID string) string {
	if len(orderID) > 8 {
		orderID = orderID[:8]
	}
	return strings.ToUpper(orderID)
}

func refundNotice(order domain.Order, r paymentDomain.Refund) domain.Notice {
	return domain.Notice{
		Type:      domain.EventOrderRefundInitiated,
		Title:     "Your refund is being processed",
		Body:      fmt.Sprintf("We initiated a refund for your order %s.", shortRef(order.OrderID)),
		Recipient: order.UserID,
		DedupeKey: domain.EventOrderRefundInitiated + ":" + order.OrderID,
		Data: map[string]any{
			"orderId":  order.OrderID,
			"refundId": r.ID,
			"amount":   r.Amount,
			"status":   string(r.Status),
		},
	}
}

func cancelNotice(order domain.Order, by role, reason string, given bool) domain.Notice {
	data := map[string]any{
		"orderId":     order.OrderID,
		"cancelledBy": string(by),
	}
	if given {
		data["reason"] = reason
	}
	return domain.Notice{
		Type:      domain.EventOrderCancelled,
		Title:     "Your order was cancelled",
		Body:      fmt.Sprintf("Order %s has been cancelled.", shortRef(order.OrderID)),
		Recipient: order.UserID,
		DedupeKey: domain.EventOrderCancelled + ":" + order.OrderID,
		Data:      data,
	}
}

// IsClientError reports whether err is one of the caller-facing rejections
// rather than a failure of this service or its collaborators.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrUnauthenticated,
		domain.ErrInvalidArgument,
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrAlreadyCancelled,
		domain.ErrInvalidState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
