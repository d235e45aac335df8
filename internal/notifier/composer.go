package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

// profileReader resolves the recipient for a customer id.
type profileReader interface {
	FindProfile(ctx context.Context, customerID uuid.UUID) (*models.CustomerProfile, error)
}

// Composer renders outbox events into customer emails. Events with no
// customer-facing message compose to nil.
type Composer struct {
	profiles profileReader
}

// NewComposer builds a composer resolving recipients through the reader.
func NewComposer(profiles profileReader) (*Composer, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile reader required")
	}
	return &Composer{profiles: profiles}, nil
}

type packagePayload struct {
	PackageID      uuid.UUID `json:"packageId"`
	CustomerID     uuid.UUID `json:"customerId"`
	ClosesAt       time.Time `json:"closesAt"`
	Remaining      string    `json:"remaining"`
	Reason         string    `json:"reason"`
	TrackingNumber *string   `json:"trackingNumber"`
}

type returnPayload struct {
	CustomerID  uuid.UUID       `json:"customerId"`
	Number      string          `json:"number"`
	OrderNumber string          `json:"orderNumber"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Type        string          `json:"type"`
}

// Compose renders the event, or returns nil when no email should go out.
func (c *Composer) Compose(ctx context.Context, event models.OutboxEvent) (*Email, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch event.EventType {
	case enums.EventPackageClosingSoon, enums.EventPackageClosed, enums.EventPackageShipped:
		var payload packagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode package payload: %w", err)
		}
		return c.composePackage(ctx, event.EventType, payload)
	case enums.EventReturnDeclared, enums.EventReturnCompleted:
		var payload returnPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode return payload: %w", err)
		}
		return c.composeReturn(ctx, event.EventType, payload)
	default:
		return nil, nil
	}
}

func (c *Composer) composePackage(ctx context.Context, eventType enums.OutboxEventType, payload packagePayload) (*Email, error) {
	profile, err := c.profiles.FindProfile(ctx, payload.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	switch eventType {
	case enums.EventPackageClosingSoon:
		return &Email{
			To:      profile.Email,
			Subject: "Votre colis ouvert se ferme bientôt",
			Text: fmt.Sprintf(
				"Bonjour %s,\n\nVotre colis ouvert se ferme le %s (dans %s). Ajoutez une derniere commande pour profiter des frais de port groupes !\n\nLa Boutique de Morgane",
				profile.DisplayName, payload.ClosesAt.Format("02/01/2006 15:04"), payload.Remaining,
			),
		}, nil
	case enums.EventPackageClosed:
		return &Email{
			To:      profile.Email,
			Subject: "Votre colis est ferme et part en preparation",
			Text: fmt.Sprintf(
				"Bonjour %s,\n\nVotre colis ouvert est maintenant ferme. Nous preparons l'expedition de vos commandes groupees.\n\nLa Boutique de Morgane",
				profile.DisplayName,
			),
		}, nil
	case enums.EventPackageShipped:
		tracking := ""
		if payload.TrackingNumber != nil {
			tracking = fmt.Sprintf("\nNumero de suivi : %s", *payload.TrackingNumber)
		}
		return &Email{
			To:      profile.Email,
			Subject: "Votre colis est en route",
			Text: fmt.Sprintf(
				"Bonjour %s,\n\nVotre colis a ete expedie.%s\n\nLa Boutique de Morgane",
				profile.DisplayName, tracking,
			),
		}, nil
	}
	return nil, nil
}

func (c *Composer) composeReturn(ctx context.Context, eventType enums.OutboxEventType, payload returnPayload) (*Email, error) {
	profile, err := c.profiles.FindProfile(ctx, payload.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	switch eventType {
	case enums.EventReturnDeclared:
		return &Email{
			To:      profile.Email,
			Subject: fmt.Sprintf("Retour %s bien enregistre", payload.Number),
			Text: fmt.Sprintf(
				"Bonjour %s,\n\nNous avons bien enregistre votre retour %s pour la commande %s. Vous recevrez un email a chaque etape.\n\nLa Boutique de Morgane",
				profile.DisplayName, payload.Number, payload.OrderNumber,
			),
		}, nil
	case enums.EventReturnCompleted:
		return &Email{
			To:      profile.Email,
			Subject: fmt.Sprintf("Retour %s traite", payload.Number),
			Text: fmt.Sprintf(
				"Bonjour %s,\n\nVotre retour %s est traite. Le montant de %s EUR a ete credite selon le mode choisi.\n\nLa Boutique de Morgane",
				profile.DisplayName, payload.Number, payload.TotalAmount.StringFixed(2),
			),
		}, nil
	}
	return nil, nil
}
