package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
	"ticket-checkout/internal/storage"
)

const maxReconcileAttempts = 5

// CheckoutService keeps each basket's remote checkout session in line with
// the local basket.
type CheckoutService struct {
	store     storage.Store
	gateway   PaymentGateway
	publisher EventPublisher
	marker    ReconcileMarker
	log       *logger.Logger
	cfg       config.CheckoutConfig
	returnURL string
}

func NewCheckoutService(store storage.Store, gateway PaymentGateway, publisher EventPublisher, marker ReconcileMarker,
	log *logger.Logger, cfg config.CheckoutConfig, returnURL string) *CheckoutService {
	return &CheckoutService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		marker:    marker,
		log:       log,
		cfg:       cfg,
		returnURL: returnURL,
	}
}

// GetOrCreateSession returns the basket's live session, creating a new one
// when there is none or the mirrored one can no longer be fetched.
func (s *CheckoutService) GetOrCreateSession(ctx context.Context, basketID string) (*models.SessionView, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.OrderTickets(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBasketEmpty, basketID)
	}
	return s.sync(ctx, order, tickets, 1)
}

// UpdateSession reconciles the basket's session after a basket mutation.
// Remote failures are reported as UpdateStatusError and queued for retry;
// only local failures come back as errors.
func (s *CheckoutService) UpdateSession(ctx context.Context, basketID string) (models.UpdateStatus, error) {
	return s.updateSession(ctx, basketID, 1)
}

func (s *CheckoutService) updateSession(ctx context.Context, basketID string, attempt int) (models.UpdateStatus, error) {
	order, err := loadOrder(ctx, s.store, basketID)
	if err != nil {
		return "", err
	}
	tickets, err := s.store.OrderTickets(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if len(tickets) == 0 {
		s.log.LogCheckout("RECONCILE", basketID, "basket is empty")
		return models.UpdateStatusEmptied, nil
	}

	view, err := s.sync(ctx, order, tickets, attempt)
	if err != nil {
		if errors.Is(err, ErrStripeAPIError) {
			s.scheduleRetry(ctx, basketID, err.Error(), attempt)
			return models.UpdateStatusError, nil
		}
		return "", err
	}
	if view.Reconciled == "" {
		s.log.Warn("CHECKOUT", fmt.Sprintf("Session %s for basket %s is %s; line items left as they are",
			view.SessionID, basketID, view.Status))
		return models.UpdateStatusError, nil
	}
	return view.Reconciled, nil
}

// SessionStatus reports the remote state of a session.
func (s *CheckoutService) SessionStatus(ctx context.Context, sessionID string) (*models.SessionStatusView, error) {
	if sessionID == "" {
		return nil, validationError("session id is required")
	}
	remote, err := s.getRemoteSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view := &models.SessionStatusView{
		SessionID:     remote.ID,
		Status:        remote.Status,
		PaymentStatus: remote.PaymentStatus,
		CustomerEmail: remote.CustomerEmail,
		BasketID:      remote.Metadata[models.MetaBasketID],
	}
	if mirror, err := s.store.GetCheckoutSessionBySessionID(ctx, sessionID); err == nil {
		if order, err := s.store.GetOrder(ctx, mirror.OrderID); err == nil {
			view.BasketID = order.BasketID
		}
	}
	return view, nil
}

// HandleReconcileRequest retries a reconciliation queued after a remote
// failure. A failing retry queues the next attempt until the limit.
func (s *CheckoutService) HandleReconcileRequest(req *models.ReconcileRequest) error {
	ctx := context.Background()
	if s.marker != nil {
		if err := s.marker.ClearPending(ctx, req.BasketID); err != nil {
			s.log.Warn("REDIS", fmt.Sprintf("Failed to clear pending marker for basket %s: %v", req.BasketID, err))
		}
	}
	status, err := s.updateSession(ctx, req.BasketID, req.Attempt+1)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("CHECKOUT", fmt.Sprintf("Dropping reconcile request for basket %s: %v", req.BasketID, err))
			return nil
		}
		return err
	}
	s.log.LogCheckout("RETRY", req.BasketID, fmt.Sprintf("attempt %d finished with %s", req.Attempt+1, status))
	return nil
}

func (s *CheckoutService) sync(ctx context.Context, order *models.Order, tickets []models.Ticket, attempt int) (*models.SessionView, error) {
	mirror, err := s.store.GetCheckoutSession(ctx, order.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if mirror != nil {
		remote, err := s.getRemoteSession(ctx, mirror.SessionID)
		if err == nil {
			view := sessionView(order, remote)
			if view.ClientSecret == "" {
				view.ClientSecret = mirror.ClientSecret
			}
			if remote.Status != models.SessionStatusOpen {
				return view, nil
			}
			view.Reconciled, err = s.reconcileOpen(ctx, order, remote, tickets, attempt)
			return view, err
		}
		s.log.Warn("CHECKOUT", fmt.Sprintf("Session %s for basket %s could not be fetched, creating a new one: %v",
			mirror.SessionID, order.BasketID, err))
	}
	return s.createSession(ctx, order, tickets, mirror, attempt)
}

func (s *CheckoutService) createSession(ctx context.Context, order *models.Order, tickets []models.Ticket,
	mirror *models.CheckoutSession, attempt int) (*models.SessionView, error) {
	req := &CreateSessionRequest{
		LineItems: NewLineItemSpecs(GroupTickets(tickets), order.BasketID),
		ReturnURL: s.returnURL,
		Metadata: map[string]string{
			models.MetaBasketID: order.BasketID,
			models.MetaOrderID:  strconv.FormatInt(order.ID, 10),
		},
	}

	rctx, cancel := s.remoteContext(ctx)
	remote, err := s.gateway.CreateSession(rctx, req)
	cancel()
	if err != nil {
		return nil, remoteError("create session", err)
	}

	if mirror == nil {
		mirror = &models.CheckoutSession{OrderID: order.ID}
	}
	mirror.SessionID = remote.ID
	mirror.ClientSecret = remote.ClientSecret
	mirror.PaymentIntentID = remote.PaymentIntentID
	if err := s.store.SaveCheckoutSession(ctx, mirror); err != nil {
		return nil, err
	}
	s.log.LogCheckout("CREATE", order.BasketID, fmt.Sprintf("session %s with %d line items", remote.ID, len(req.LineItems)))

	view := sessionView(order, remote)
	view.Reconciled = models.UpdateStatusUpdated

	// New sessions carry no discount; applied vouchers go on with the first update.
	applied, err := s.store.OrderVouchers(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if voucherDiscount(applied).capped(ticketsTotalMinor(tickets)) != nil {
		view.Reconciled, err = s.reconcileOpen(ctx, order, remote, tickets, attempt)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

// reconcileOpen brings an open session's line items and discount in line
// with the basket. Remote failures yield UpdateStatusError and a retry.
func (s *CheckoutService) reconcileOpen(ctx context.Context, order *models.Order, remote *RemoteSession,
	tickets []models.Ticket, attempt int) (models.UpdateStatus, error) {
	applied, err := s.store.OrderVouchers(ctx, order.ID)
	if err != nil {
		return "", err
	}
	discount := voucherDiscount(applied).capped(ticketsTotalMinor(tickets))
	groups := GroupTickets(tickets)

	rctx, cancel := s.remoteContext(ctx)
	items, err := s.gateway.ListLineItems(rctx, remote.ID)
	cancel()
	if err != nil {
		s.scheduleRetry(ctx, order.BasketID, remoteError("list line items", err).Error(), attempt)
		return models.UpdateStatusError, nil
	}

	plan := PlanLineItems(items, groups, order.BasketID, s.cfg.PriceMatchFallback)
	if plan.Empty() {
		return models.UpdateStatusEmptied, nil
	}
	if !plan.Changed() && remote.DiscountMinor == discount.minor() {
		s.log.Debug("CHECKOUT", fmt.Sprintf("Session %s already matches basket %s", remote.ID, order.BasketID))
		return models.UpdateStatusUpdated, nil
	}

	rctx, cancel = s.remoteContext(ctx)
	err = s.gateway.ReplaceLineItems(rctx, remote.ID, plan.Items, discount)
	cancel()
	if err != nil {
		s.scheduleRetry(ctx, order.BasketID, remoteError("update line items", err).Error(), attempt)
		return models.UpdateStatusError, nil
	}

	s.log.LogCheckout("RECONCILE", order.BasketID, fmt.Sprintf(
		"session %s: %d created, %d updated, %d removed, %d kept, %d foreign, discount %d",
		remote.ID, plan.Created, plan.Updated, plan.Removed, plan.Kept, plan.Foreign, discount.minor()))
	return models.UpdateStatusUpdated, nil
}

func (s *CheckoutService) getRemoteSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()
	remote, err := s.gateway.GetSession(rctx, sessionID)
	if err != nil {
		return nil, remoteError("get session", err)
	}
	return remote, nil
}

func (s *CheckoutService) scheduleRetry(ctx context.Context, basketID, reason string, attempt int) {
	s.log.Warn("CHECKOUT", fmt.Sprintf("Reconciliation of basket %s failed (attempt %d): %s", basketID, attempt, reason))
	if s.publisher == nil || attempt >= maxReconcileAttempts {
		return
	}
	if s.marker != nil {
		fresh, err := s.marker.MarkPending(ctx, basketID)
		if err != nil {
			s.log.Warn("REDIS", fmt.Sprintf("Failed to mark basket %s pending: %v", basketID, err))
		} else if !fresh {
			s.log.Debug("CHECKOUT", fmt.Sprintf("Retry already pending for basket %s", basketID))
			return
		}
	}
	req := &models.ReconcileRequest{
		BasketID:  basketID,
		Reason:    reason,
		Attempt:   attempt,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishReconcileRequest(req); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to queue reconcile retry for basket %s: %v", basketID, err))
	}
}

func (s *CheckoutService) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RemoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RemoteTimeout)
}

func remoteError(op string, err error) error {
	if errors.Is(err, ErrStripeAPIError) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrStripeAPIError, op, err)
}

func sessionView(order *models.Order, remote *RemoteSession) *models.SessionView {
	return &models.SessionView{
		BasketID:      order.BasketID,
		SessionID:     remote.ID,
		ClientSecret:  remote.ClientSecret,
		Status:        remote.Status,
		PaymentIntent: remote.PaymentIntentID,
	}
}
