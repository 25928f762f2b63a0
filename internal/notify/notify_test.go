package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

var testConfig = domain.NotifyConfig{
	Mailer:      "log",
	FromAddress: "claims@harrier.local",
	FromName:    "Harrier Claims",
}

func newRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "notify.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestNotifyInline(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mailer := &recordingMailer{}
	svc := NewService(repo, nil, mailer, testConfig, nil)

	require.NoError(t, svc.Notify(ctx, "claim-1", "john@example.com", domain.NotifyDecisionMade))

	list, err := repo.ListNotifications(ctx, "claim-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	n := list[0]
	assert.Equal(t, domain.NotificationSent, n.Status)
	assert.Equal(t, "Claim Decision", n.Subject)
	assert.Equal(t, "A decision has been made on your claim.", n.Body)
	assert.NotNil(t, n.SentAt)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "john@example.com", mailer.sent[0].To)
	assert.Equal(t, "Harrier Claims", mailer.sent[0].FromName)
}

func TestNotifyDeliveryFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := NewService(repo, nil, &recordingMailer{err: errors.New("mailbox unavailable")}, testConfig, nil)

	require.NoError(t, svc.Notify(ctx, "claim-1", "john@example.com", domain.NotifyManualReviewAssigned))

	list, err := repo.ListNotifications(ctx, "claim-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationFailed, list[0].Status)
	assert.Equal(t, "mailbox unavailable", list[0].Error)
	assert.Nil(t, list[0].SentAt)
}

func TestNotifyThroughBus(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	eventBus := bus.NewChannelBus(16)
	t.Cleanup(func() { eventBus.Close() })

	mailer := &recordingMailer{}
	svc := NewService(repo, eventBus, mailer, testConfig, nil)
	dispatcher := NewDispatcher(svc, eventBus, nil)
	require.NoError(t, dispatcher.Start(ctx))
	t.Cleanup(func() { dispatcher.Stop() })

	require.Error(t, dispatcher.Start(ctx))

	require.NoError(t, svc.Notify(ctx, "claim-2", "jane@example.com", domain.NotifyClaimReceived))

	require.Eventually(t, func() bool {
		list, err := repo.ListNotifications(ctx, "claim-2")
		return err == nil && len(list) == 1 && list[0].Status == domain.NotificationSent
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, mailer.count())
}

func TestDeliverSkipsSent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mailer := &recordingMailer{}
	svc := NewService(repo, nil, mailer, testConfig, nil)

	require.NoError(t, svc.Notify(ctx, "claim-3", "john@example.com", domain.NotifyStatusUpdate))
	list, err := repo.ListNotifications(ctx, "claim-3")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Deliver(ctx, list[0].ID))
	assert.Equal(t, 1, mailer.count())

	err = svc.Deliver(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingBus struct {
	domain.EventBus
}

func (failingBus) Publish(context.Context, string, []byte) error {
	return errors.New("bus down")
}

func TestNotifyFallsBackInline(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mailer := &recordingMailer{}
	svc := NewService(repo, failingBus{}, mailer, testConfig, nil)

	require.NoError(t, svc.Notify(ctx, "claim-4", "john@example.com", domain.NotifyDecisionMade))
	assert.Equal(t, 1, mailer.count())
}

type fakeSES struct {
	sesiface.SESAPI
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmailWithContext(_ aws.Context, in *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESMailer(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSES{}
	m := NewSESMailerWithClient(fake)

	id, err := m.Send(ctx, Message{
		To:          "john@example.com",
		FromName:    "Harrier Claims",
		FromAddress: "claims@harrier.local",
		Subject:     "Claim Decision",
		Body:        "A decision has been made on your claim.",
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	assert.Equal(t, "Harrier Claims <claims@harrier.local>", aws.StringValue(fake.input.Source))
	assert.Equal(t, []string{"john@example.com"}, aws.StringValueSlice(fake.input.Destination.ToAddresses))
	assert.Equal(t, "Claim Decision", aws.StringValue(fake.input.Message.Subject.Data))
	assert.Equal(t, "A decision has been made on your claim.", aws.StringValue(fake.input.Message.Body.Text.Data))

	_, err = m.Send(ctx, Message{To: "customer-42"})
	assert.Error(t, err)

	fake.err = errors.New("throttled")
	_, err = m.Send(ctx, Message{To: "john@example.com"})
	assert.ErrorIs(t, err, fake.err)
}

func TestAddressWithName(t *testing.T) {
	assert.Equal(t, "a@b.c", addressWithName("", "a@b.c"))
	assert.Equal(t, "Name <a@b.c>", addressWithName("Name", "a@b.c"))
}
