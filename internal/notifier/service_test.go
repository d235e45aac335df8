package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/db/models"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/outbox"
)

type fakeOutboxRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	out := f.events
	f.events = nil
	return out, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeSender struct {
	sent []Email
	err  error
}

func (f *fakeSender) Send(ctx context.Context, email *Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *email)
	return nil
}

type fakeProfiles struct {
	profiles map[uuid.UUID]*models.CustomerProfile
}

func (f *fakeProfiles) FindProfile(ctx context.Context, customerID uuid.UUID) (*models.CustomerProfile, error) {
	profile, ok := f.profiles[customerID]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return profile, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "notifier-test"})
}

func outboxEvent(t *testing.T, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
	}
}

func newTestService(t *testing.T, repo *fakeOutboxRepo, sender Sender, profiles *fakeProfiles) *Service {
	t.Helper()
	comp, err := NewComposer(profiles)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:     testLogger(t),
		Repository: repo,
		Composer:   comp,
		Sender:     sender,
	})
	require.NoError(t, err)
	return svc
}

func TestProcessBatchSendsClosingSoonEmail(t *testing.T) {
	customerID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*models.CustomerProfile{
		customerID: {CustomerID: customerID, Email: "morgane@example.fr", DisplayName: "Morgane"},
	}}
	event := outboxEvent(t, enums.EventPackageClosingSoon, map[string]any{
		"packageId":  uuid.NewString(),
		"customerId": customerID.String(),
		"closesAt":   time.Now().Add(12 * time.Hour).UTC(),
		"remaining":  "11h30m",
	})
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender, profiles)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "morgane@example.fr", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Text, "11h30m")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
	assert.Empty(t, repo.failed)
}

func TestProcessBatchSkipsEventsWithoutTemplate(t *testing.T) {
	event := outboxEvent(t, enums.EventPackageOpened, map[string]any{
		"packageId":  uuid.NewString(),
		"customerId": uuid.NewString(),
	})
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender, &fakeProfiles{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published, "silent events are acked without sending")
}

func TestProcessBatchMarksFailedOnSendError(t *testing.T) {
	customerID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*models.CustomerProfile{
		customerID: {CustomerID: customerID, Email: "client@example.fr", DisplayName: "Client"},
	}}
	event := outboxEvent(t, enums.EventPackageShipped, map[string]any{
		"packageId":      uuid.NewString(),
		"customerId":     customerID.String(),
		"trackingNumber": "LB123456789FR",
	})
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	sender := &fakeSender{err: errors.New("resend unavailable")}
	svc := newTestService(t, repo, sender, profiles)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, repo.published)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed, "row stays unpublished for a later retry")
}

func TestProcessBatchMarksFailedOnUnknownRecipient(t *testing.T) {
	event := outboxEvent(t, enums.EventReturnDeclared, map[string]any{
		"customerId":  uuid.NewString(),
		"number":      "RET-20260830-ABC123",
		"orderNumber": "CMD-1042",
		"totalAmount": 35.2,
	})
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender, &fakeProfiles{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed)
}

func TestComposeReturnCompleted(t *testing.T) {
	customerID := uuid.New()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]*models.CustomerProfile{
		customerID: {CustomerID: customerID, Email: "client@example.fr", DisplayName: "Camille"},
	}}
	comp, err := NewComposer(profiles)
	require.NoError(t, err)

	event := outboxEvent(t, enums.EventReturnCompleted, map[string]any{
		"customerId":  customerID.String(),
		"number":      "RET-20260830-ABC123",
		"orderNumber": "CMD-1042",
		"totalAmount": 35.2,
	})

	email, err := comp.Compose(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, "client@example.fr", email.To)
	assert.Contains(t, email.Subject, "RET-20260830-ABC123")
	assert.Contains(t, email.Text, "35.20 EUR")
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newTestService(t, repo, &fakeSender{}, &fakeProfiles{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}
