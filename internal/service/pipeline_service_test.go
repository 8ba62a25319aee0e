package service

import (
	"context"
	"testing"

	"intake-service/config"
	"intake-service/internal/models"
	"intake-service/internal/vendor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIntakeStore keeps inbound emails keyed by content hash, enforcing
// the unique constraint the SQL store gets from the schema.
type fakeIntakeStore struct {
	byHash map[string]*models.InboundEmail
	byID   map[int64]*models.InboundEmail
	nextID int64
}

func newFakeIntakeStore() *fakeIntakeStore {
	return &fakeIntakeStore{
		byHash: make(map[string]*models.InboundEmail),
		byID:   make(map[int64]*models.InboundEmail),
	}
}

func (f *fakeIntakeStore) CreateInboundEmail(_ context.Context, email *models.InboundEmail) error {
	if _, ok := f.byHash[email.ContentHash]; ok {
		return assert.AnError
	}
	f.nextID++
	email.ID = f.nextID
	f.byHash[email.ContentHash] = email
	f.byID[email.ID] = email
	return nil
}

func (f *fakeIntakeStore) GetEmailByID(_ context.Context, id int64) (*models.InboundEmail, error) {
	return f.byID[id], nil
}

func (f *fakeIntakeStore) GetEmailByContentHash(_ context.Context, hash string) (*models.InboundEmail, error) {
	return f.byHash[hash], nil
}

func (f *fakeIntakeStore) SetEmailParseResult(_ context.Context, emailID int64, vendorKey, status, parseError string) error {
	email := f.byID[emailID]
	email.Vendor = vendorKey
	email.ParseStatus = status
	email.ParseError = parseError
	return nil
}

func intakeFixture(t *testing.T) (*fakeIntakeStore, *fakeCache, *fakePublisher, *PipelineService) {
	t.Helper()

	registry, err := vendor.ParseRegistry([]byte(`
vendors:
  - key: modernoptical
    name: Modern Optical
    priority: 10
    domains: [modernoptical.com]
    parser: modernoptical
`))
	require.NoError(t, err)

	st := newFakeIntakeStore()
	cache := newFakeCache()
	pub := &fakePublisher{}
	svc := NewPipelineService(st, cache, registry, vendor.NewDetector(registry), nil, nil, nil, pub,
		config.PipelineConfig{EmailDeadlineSeconds: 60})
	return st, cache, pub, svc
}

func webhookFixture() WebhookEmail {
	return WebhookEmail{
		Sender:    "orders@modernoptical.com",
		Subject:   "Order Confirmation #12345",
		PlainBody: "ORDER 12345",
		AccountID: "acct-1",
	}
}

func TestReceiveEmailPersistsAndSchedules(t *testing.T) {
	st, _, pub, svc := intakeFixture(t)

	email, duplicate, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)

	assert.False(t, duplicate)
	assert.Equal(t, "modernoptical", email.Vendor)
	assert.Equal(t, models.ParseStatusPending, email.ParseStatus)
	assert.Len(t, st.byID, 1)
	require.Len(t, pub.emailReceived, 1)
	assert.Equal(t, email.ID, pub.emailReceived[0].EmailID)
}

func TestReceiveEmailDuplicateIsNotRescheduled(t *testing.T) {
	_, cache, pub, svc := intakeFixture(t)

	first, _, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)
	first.ParseStatus = models.ParseStatusParsed

	cache.fresh = false
	second, duplicate, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)

	assert.True(t, duplicate)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, pub.emailReceived, 1)
}

func TestReceiveEmailReschedulesUnprocessedDuplicate(t *testing.T) {
	// A publish failure after the insert leaves the row pending and the
	// hash marked seen; the provider's retry must schedule it again.
	_, cache, pub, svc := intakeFixture(t)

	pub.failPublish = true
	_, _, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.Error(t, err)
	assert.Empty(t, pub.emailReceived)

	pub.failPublish = false
	cache.fresh = false
	email, duplicate, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)

	assert.True(t, duplicate)
	assert.Equal(t, models.ParseStatusPending, email.ParseStatus)
	require.Len(t, pub.emailReceived, 1)
	assert.Equal(t, email.ID, pub.emailReceived[0].EmailID)
}

func TestReceiveEmailDedupSurvivesRedisOutage(t *testing.T) {
	// Redis reporting fresh for a replay still dedups through the store's
	// unique content hash.
	st, _, _, svc := intakeFixture(t)

	first, _, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)
	first.ParseStatus = models.ParseStatusParsed

	second, duplicate, err := svc.ReceiveEmail(context.Background(), webhookFixture())
	require.NoError(t, err)

	assert.True(t, duplicate)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, st.byID, 1)
}

func TestContentHashStable(t *testing.T) {
	in := WebhookEmail{
		Sender:    "orders@modernoptical.com",
		Subject:   "Order Confirmation #12345",
		HTMLBody:  "<html><body>order</body></html>",
		AccountID: "acct-1",
	}

	assert.Equal(t, contentHash(in), contentHash(in))
}

func TestContentHashIgnoresProviderMetadata(t *testing.T) {
	a := WebhookEmail{Sender: "s@v.com", Subject: "x", PlainBody: "body", AccountID: "acct-1"}
	b := a
	b.AccountID = "acct-2"

	assert.Equal(t, contentHash(a), contentHash(b))
}

func TestContentHashFieldBoundaries(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc".
	a := WebhookEmail{Sender: "ab", Subject: "c"}
	b := WebhookEmail{Sender: "a", Subject: "bc"}

	assert.NotEqual(t, contentHash(a), contentHash(b))
}

func TestTransitionErrorWrapsSentinel(t *testing.T) {
	err := transitionError(7, "sold", "current")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "item 7 is sold")
}
