package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

const stripeUIModeCustom = "custom"

// StripeService is the PaymentGateway backed by Stripe Checkout sessions in
// custom UI mode with server-side line item updates.
type StripeService struct {
	client   *client.API
	backend  stripe.Backend
	key      string
	currency string
	log      *logger.Logger
}

// NewStripeService creates a new instance of StripeService
func NewStripeService(cfg config.StripeConfig, log *logger.Logger) (*StripeService, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client:   sc,
		backend:  stripe.GetBackend(stripe.APIBackend),
		key:      cfg.SecretKey,
		currency: cfg.Currency,
		log:      log,
	}, nil
}

// CreateSession opens a payment-mode session whose line items the server
// may replace later.
func (s *StripeService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*RemoteSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModePayment)),
		UIMode:    stripe.String(stripeUIModeCustom),
		ReturnURL: stripe.String(req.ReturnURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExtra("permissions[update_line_items]", "server_only")

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(item.Name),
			Metadata: item.Metadata,
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
		})
	}

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.LogPayment("SESSION", sess.ID, fmt.Sprintf("Checkout session created with %d line items", len(req.LineItems)))
	return toRemoteSession(sess), nil
}

func (s *StripeService) GetSession(ctx context.Context, sessionID string) (*RemoteSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session %s: %v", sessionID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return toRemoteSession(sess), nil
}

// ListLineItems pages through a session's line items with their product
// metadata expanded.
func (s *StripeService) ListLineItems(ctx context.Context, sessionID string) ([]RemoteLineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.price.product")

	var items []RemoteLineItem
	iter := s.client.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()
		item := RemoteLineItem{ID: li.ID, Quantity: li.Quantity}
		if li.Price != nil {
			item.UnitAmount = li.Price.UnitAmount
			if li.Price.Product != nil {
				item.Metadata = li.Price.Product.Metadata
			}
		}
		items = append(items, item)
	}
	if err := iter.Err(); err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to list line items of session %s: %v", sessionID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	return items, nil
}

// ReplaceLineItems posts the full line item set and discount to the session
// as a raw form on the session update endpoint.
func (s *StripeService) ReplaceLineItems(ctx context.Context, sessionID string, items []LineItemSpec, discount *Discount) error {
	params := &stripe.Params{Context: ctx}
	for _, field := range lineItemForm(items, discount, s.currency) {
		params.AddExtra(field.Key, field.Value)
	}

	sess := &stripe.CheckoutSession{}
	if err := s.backend.Call(http.MethodPost, "/v1/checkout/sessions/"+sessionID, s.key, params, sess); err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to update line items of session %s: %v", sessionID, err))
		return fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.LogPayment("SESSION", sessionID, fmt.Sprintf("Line items replaced (%d entries, discount %d)", len(items), discount.minor()))
	return nil
}

func (s *StripeService) CreateRefund(ctx context.Context, req *RefundRequest) (*RemoteRefund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.AmountMinor),
		Reason:        stripe.String(req.Reason),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	refundObj, err := s.client.Refunds.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Refund failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.LogPayment("REFUND", refundObj.ID, fmt.Sprintf("Refund of %d for intent %s: %s", refundObj.Amount, req.PaymentIntentID, refundObj.Status))
	return &RemoteRefund{ID: refundObj.ID, AmountMinor: refundObj.Amount, Status: string(refundObj.Status)}, nil
}

func toRemoteSession(sess *stripe.CheckoutSession) *RemoteSession {
	remote := &RemoteSession{
		ID:            sess.ID,
		ClientSecret:  sess.ClientSecret,
		Status:        models.ParseSessionStatus(string(sess.Status)),
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		remote.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil {
		remote.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.TotalDetails != nil {
		remote.DiscountMinor = sess.TotalDetails.AmountDiscount
	}
	return remote
}

type formField struct {
	Key   string
	Value string
}

// lineItemForm encodes a full line item set. Kept items carry only id and
// quantity; new items carry inline price data. A missing discount is sent
// as an empty discounts list, which clears it.
func lineItemForm(items []LineItemSpec, discount *Discount, currency string) []formField {
	var form []formField
	add := func(key, value string) { form = append(form, formField{key, value}) }

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		if item.ID != "" {
			add(prefix+"[id]", item.ID)
			add(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
			continue
		}
		add(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		add(prefix+"[price_data][currency]", currency)
		add(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		add(prefix+"[price_data][product_data][name]", item.Name)
		if item.Description != "" {
			add(prefix+"[price_data][product_data][description]", item.Description)
		}
		keys := make([]string, 0, len(item.Metadata))
		for k := range item.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(prefix+"[price_data][product_data][metadata]["+k+"]", item.Metadata[k])
		}
	}

	if discount.minor() > 0 {
		add("discounts[0][coupon_data][name]", discount.Name)
		add("discounts[0][coupon_data][amount_off]", strconv.FormatInt(discount.AmountMinor, 10))
		add("discounts[0][coupon_data][currency]", currency)
	} else {
		add("discounts", "")
	}
	return form
}
