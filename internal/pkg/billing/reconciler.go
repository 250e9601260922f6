package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/inkwell-app/InkWell/app/models"
	"github.com/inkwell-app/InkWell/internal/pkg/entitlement"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/inkwell-app/InkWell/internal/pkg/usage"
	"gorm.io/gorm"
)

// Outcome classifies how a webhook delivery ended, for the HTTP layer to
// map onto status codes.
type Outcome int

const (
	// OutcomeApplied means the event mutated billing state.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the event id was already processed.
	OutcomeDuplicate
	// OutcomeIgnored means the event type is unknown or carries nothing
	// for us; acknowledged so the provider stops retrying.
	OutcomeIgnored
	// OutcomeDropped means the event was valid but its user cannot be
	// resolved; recorded and acknowledged, since redelivery can never
	// succeed either.
	OutcomeDropped
	// OutcomeRejected means the payload failed validation.
	OutcomeRejected
	// OutcomeUnauthorized means signature verification failed.
	OutcomeUnauthorized
)

// ProcessResult is what the webhook endpoint needs to answer a delivery.
type ProcessResult struct {
	Outcome       Outcome
	CorrelationID string
}

// Reconciler verifies, classifies and applies billing-provider events to
// local billing records. It is the only writer of billing fields.
type Reconciler struct {
	repo   Repository
	cfg    Config
	policy *tier.Policy
	ledger *usage.Ledger
	now    func() time.Time
}

func NewReconciler(repo Repository, cfg Config, policy *tier.Policy, ledger *usage.Ledger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		cfg:    cfg,
		policy: policy,
		ledger: ledger,
		now:    time.Now,
	}
}

// ProcessWebhook runs the full delivery pipeline: verify the signature
// over the raw body, parse, dedupe by provider event id, then apply the
// typed event. Nothing is parsed before the signature checks out.
func (r *Reconciler) ProcessWebhook(ctx context.Context, body []byte, signatureHeader string) (ProcessResult, error) {
	res := ProcessResult{CorrelationID: uuid.NewString()}

	if !VerifyWebhookSignature(body, signatureHeader, r.cfg.WebhookSecret) {
		res.Outcome = OutcomeUnauthorized
		return res, nil
	}

	ev, err := ParseEvent(body)
	if err != nil {
		log.Warnf("webhook rejected (correlation_id=%s): %v", res.CorrelationID, err)
		res.Outcome = OutcomeRejected
		return res, nil
	}

	eventID := ev.ID
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := r.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		Provider:        r.cfg.Provider,
		ProviderEventID: eventID,
		EventType:       ev.Type,
		CorrelationID:   res.CorrelationID,
		PayloadJSON:     string(body),
		SignatureValid:  true,
	})
	if err != nil {
		return res, err
	}
	if !created {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	if !ev.Known {
		_ = r.repo.MarkWebhookProcessed(stored.ID, "")
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	applyErr := r.apply(ctx, ev)
	processingError := ""
	if applyErr != nil {
		processingError = applyErr.Error()
	}
	_ = r.repo.MarkWebhookProcessed(stored.ID, processingError)

	switch {
	case applyErr == nil:
		res.Outcome = OutcomeApplied
		return res, nil
	case errors.Is(applyErr, ErrUserNotFound):
		log.Warnf("webhook dropped, user unresolved (correlation_id=%s type=%s)", res.CorrelationID, ev.Type)
		res.Outcome = OutcomeDropped
		return res, nil
	case errors.Is(applyErr, ErrValidation), errors.Is(applyErr, ErrUnknownProduct):
		log.Warnf("webhook rejected (correlation_id=%s type=%s): %v", res.CorrelationID, ev.Type, applyErr)
		res.Outcome = OutcomeRejected
		return res, nil
	default:
		return res, applyErr
	}
}

func (r *Reconciler) apply(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventSubscriptionCreated, EventCheckoutCompleted:
		return r.applySubscriptionStarted(ctx, ev.Subscription)
	case EventSubscriptionUpdated:
		return r.applySubscriptionUpdated(ctx, ev.Subscription)
	case EventSubscriptionCanceled:
		return r.applySubscriptionCanceled(ctx, ev.Subscription)
	case EventOrderPaid:
		return r.applyOrderPaid(ctx, ev.Order)
	default:
		return nil
	}
}

// applySubscriptionStarted handles subscription.created and
// checkout.completed: tier from the product catalogue, status active,
// provider ids and period bounds copied over.
func (r *Reconciler) applySubscriptionStarted(ctx context.Context, data *SubscriptionData) error {
	newTier, ok := r.cfg.TierForProduct(data.ProductID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProduct, data.ProductID)
	}

	rec, err := r.resolveRecord(data)
	if err != nil {
		return err
	}

	rec.Tier = string(newTier)
	rec.Status = models.BillingStatusActive
	rec.Provider = r.cfg.Provider
	rec.ProviderCustomerID = strings.TrimSpace(data.CustomerID)
	rec.ProviderSubscriptionID = strings.TrimSpace(data.SubscriptionID)
	rec.CurrentPeriodStart = data.CurrentPeriodStart
	rec.CurrentPeriodEnd = data.CurrentPeriodEnd
	rec.CancelAtPeriodEnd = data.CancelAtPeriodEnd
	rec.DowngradeAtPeriodEnd = false

	if err := r.repo.SaveRecord(rec); err != nil {
		return err
	}
	return r.snapshotCurrentPeriod(ctx, rec)
}

// applySubscriptionUpdated maps the provider status onto the local state
// machine and refreshes period bounds. The tier only moves when the event
// explicitly names a new product.
func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, data *SubscriptionData) error {
	rec, err := r.resolveRecord(data)
	if err != nil {
		return err
	}

	rec.Status = MapProviderStatus(data.Status)
	rec.CurrentPeriodStart = data.CurrentPeriodStart
	rec.CurrentPeriodEnd = data.CurrentPeriodEnd
	rec.CancelAtPeriodEnd = data.CancelAtPeriodEnd

	tierChanged := false
	if productID := strings.TrimSpace(data.ProductID); productID != "" {
		newTier, ok := r.cfg.TierForProduct(productID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProduct, productID)
		}
		tierChanged = rec.Tier != string(newTier)
		rec.Tier = string(newTier)
	}

	if err := r.repo.SaveRecord(rec); err != nil {
		return err
	}
	if tierChanged {
		return r.snapshotCurrentPeriod(ctx, rec)
	}
	return nil
}

// applySubscriptionCanceled sets status canceled. The billing tier is
// downgraded the same way whether or not an admin override is active: the
// override keeps the effective tier up at resolve time, while billing
// state stays a faithful mirror of the provider. With immediate
// downgrade disabled, the downgrade is marked for end of period instead.
func (r *Reconciler) applySubscriptionCanceled(ctx context.Context, data *SubscriptionData) error {
	rec, err := r.resolveRecord(data)
	if err != nil {
		return err
	}

	rec.Status = models.BillingStatusCanceled
	tierChanged := false
	if r.cfg.ImmediateDowngrade {
		tierChanged = rec.Tier != string(tier.TierFree)
		rec.Tier = string(tier.TierFree)
		rec.DowngradeAtPeriodEnd = false
	} else {
		rec.DowngradeAtPeriodEnd = true
	}

	if err := r.repo.SaveRecord(rec); err != nil {
		return err
	}
	if tierChanged {
		return r.snapshotCurrentPeriod(ctx, rec)
	}
	return nil
}

// applyOrderPaid resolves the payer by email and applies the purchased
// product like a subscription start.
func (r *Reconciler) applyOrderPaid(ctx context.Context, data *OrderData) error {
	newTier, ok := r.cfg.TierForProduct(data.ProductID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProduct, data.ProductID)
	}

	user, err := r.repo.FindUserByEmail(strings.TrimSpace(data.CustomerEmail))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: email unmatched", ErrUserNotFound)
		}
		return err
	}

	rec, err := r.repo.GetOrCreateRecord(user.ID)
	if err != nil {
		return err
	}

	rec.Tier = string(newTier)
	rec.Status = models.BillingStatusActive
	rec.Provider = r.cfg.Provider
	if customerID := strings.TrimSpace(data.CustomerID); customerID != "" {
		rec.ProviderCustomerID = customerID
	}
	rec.DowngradeAtPeriodEnd = false

	if err := r.repo.SaveRecord(rec); err != nil {
		return err
	}
	return r.snapshotCurrentPeriod(ctx, rec)
}

// resolveRecord finds the billing record an event refers to: checkout
// passthrough user id first, then provider subscription id, then customer
// id, then payment email.
func (r *Reconciler) resolveRecord(data *SubscriptionData) (*models.BillingRecord, error) {
	if data.UserID != 0 {
		return r.repo.GetOrCreateRecord(data.UserID)
	}
	if subID := strings.TrimSpace(data.SubscriptionID); subID != "" {
		rec, err := r.repo.GetRecordByProviderSubscriptionID(r.cfg.Provider, subID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if customerID := strings.TrimSpace(data.CustomerID); customerID != "" {
		rec, err := r.repo.GetRecordByProviderCustomerID(r.cfg.Provider, customerID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if email := strings.TrimSpace(data.CustomerEmail); email != "" {
		user, err := r.repo.FindUserByEmail(email)
		if err == nil {
			return r.repo.GetOrCreateRecord(user.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrUserNotFound
}

// snapshotCurrentPeriod eagerly creates this period's usage rows after a
// tier change so the new tier's limits get snapshotted for users who have
// not acted yet this month. Existing rows keep their creation-time
// snapshot.
func (r *Reconciler) snapshotCurrentPeriod(ctx context.Context, rec *models.BillingRecord) error {
	if r.ledger == nil {
		return nil
	}
	now := r.now()
	eff := entitlement.Resolve(rec, now)
	limits := r.policy.LimitsFor(eff.Tier)
	for _, action := range tier.Actions() {
		if err := r.ledger.EnsurePeriod(ctx, rec.UserID, action, eff.Tier, limits.For(action), now); err != nil {
			return err
		}
	}
	return nil
}
