package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
	EventCheckoutCompleted    = "checkout.completed"
	EventOrderPaid            = "order.paid"
)

// SubscriptionData is the payload shape shared by subscription lifecycle
// and checkout events. UserID is the checkout passthrough reference;
// events without it are resolved via provider ids or email.
type SubscriptionData struct {
	UserID             uint       `json:"user_id,omitempty"`
	CustomerID         string     `json:"customer_id"`
	SubscriptionID     string     `json:"subscription_id"`
	ProductID          string     `json:"product_id,omitempty"`
	Status             string     `json:"status,omitempty"`
	CustomerEmail      string     `json:"customer_email,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end,omitempty"`
}

// OrderData is the payload for one-off order events. The payer is
// resolved by email since orders are not tied to a subscription.
type OrderData struct {
	OrderID       string     `json:"order_id"`
	ProductID     string     `json:"product_id"`
	CustomerEmail string     `json:"customer_email"`
	CustomerID    string     `json:"customer_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// Event is the tagged union of inbound webhook events. Exactly one of the
// typed payloads is set when Known is true; unknown types carry only the
// envelope so callers can acknowledge and ignore them.
type Event struct {
	ID    string
	Type  string
	Known bool

	Subscription *SubscriptionData
	Order        *OrderData
}

type eventEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent validates the envelope and decodes the type-specific payload
// at the boundary. A malformed body or missing type is a validation
// error; an unrecognized type is not.
func ParseEvent(body []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	eventType := strings.TrimSpace(env.Type)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrValidation)
	}

	ev := &Event{ID: strings.TrimSpace(env.ID), Type: eventType}

	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled, EventCheckoutCompleted:
		var data SubscriptionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if strings.TrimSpace(data.SubscriptionID) == "" && strings.TrimSpace(data.CustomerID) == "" && data.UserID == 0 {
			return nil, fmt.Errorf("%w: event carries no subscriber reference", ErrValidation)
		}
		ev.Known = true
		ev.Subscription = &data
	case EventOrderPaid:
		var data OrderData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if strings.TrimSpace(data.CustomerEmail) == "" {
			return nil, fmt.Errorf("%w: order event missing customer email", ErrValidation)
		}
		ev.Known = true
		ev.Order = &data
	default:
		// Forward compatible: providers add event types; we acknowledge
		// and ignore what we do not handle.
	}

	return ev, nil
}
