// internal/notifier/notifier_test.go
package notifier

import (
	"context"
	"errors"
	"testing"

	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Mocks
// ==========================

type MockPushSender struct {
	err   error
	calls int
}

func (m *MockPushSender) SendIndie(ctx context.Context, subID, title, message string, data map[string]string) error {
	m.calls++
	return m.err
}

type MockSESService struct {
	err   error
	calls int
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type MockSNSService struct {
	err   error
	calls int
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func testConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Push.Enabled = true
	cfg.Push.Timeout = 1000
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "noreply@kalikascan.app"
	cfg.SMS.Enabled = false
	cfg.SMS.PriorityThreshold = "high"
	return cfg
}

func expectContactLookup(mock sqlmock.Sqlmock, uid, email, phone, token string) {
	mock.ExpectQuery(`SELECT email, phone, push_token FROM users`).
		WithArgs(uid).
		WillReturnRows(sqlmock.NewRows([]string{"email", "phone", "push_token"}).
			AddRow(email, phone, token))
}

func expectAuditInsert(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ==========================
// Tests
// ==========================

func TestNotifier_PushDelivered(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-1", "u@example.com", "", "ExponentPushToken[abc]")
	expectAuditInsert(mock)

	pushMock := &MockPushSender{}
	sesMock := &MockSESService{}
	n := New(testConfig(), db, logger.NewNoOpLogger(), pushMock, sesMock, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-1",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was approved.",
		Data:         map[string]string{"status": "approved"},
	})

	assert.True(t, report.Attempted)
	assert.True(t, report.Delivered)
	assert.Equal(t, models.ChannelPush, report.Channel)
	assert.Equal(t, 1, pushMock.calls)
	assert.Equal(t, 0, sesMock.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_PushFailsEmailFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-2", "u2@example.com", "", "ExponentPushToken[def]")
	expectAuditInsert(mock) // failed push attempt
	expectAuditInsert(mock) // email fallback

	pushMock := &MockPushSender{err: errors.New("provider returned status 500")}
	sesMock := &MockSESService{}
	n := New(testConfig(), db, logger.NewNoOpLogger(), pushMock, sesMock, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-2",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was rejected.",
	})

	assert.True(t, report.Attempted)
	assert.True(t, report.Delivered)
	assert.Equal(t, models.ChannelEmail, report.Channel)
	assert.Equal(t, 1, pushMock.calls)
	assert.Equal(t, 1, sesMock.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_AllChannelsFail_NoError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-3", "u3@example.com", "", "ExponentPushToken[ghi]")
	expectAuditInsert(mock)
	expectAuditInsert(mock)

	pushMock := &MockPushSender{err: errors.New("timeout")}
	sesMock := &MockSESService{err: errors.New("ses throttled")}
	n := New(testConfig(), db, logger.NewNoOpLogger(), pushMock, sesMock, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-3",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was approved.",
	})

	assert.True(t, report.Attempted)
	assert.False(t, report.Delivered)
	assert.NotEmpty(t, report.Detail)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_NoReachableChannel(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-4", "", "", "")
	expectAuditInsert(mock)

	n := New(testConfig(), db, logger.NewNoOpLogger(), &MockPushSender{}, &MockSESService{}, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-4",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was approved.",
	})

	assert.False(t, report.Attempted)
	assert.False(t, report.Delivered)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_RecipientLookupFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT email, phone, push_token FROM users`).
		WithArgs("missing-user").
		WillReturnError(errors.New("connection refused"))
	expectAuditInsert(mock)

	n := New(testConfig(), db, logger.NewNoOpLogger(), &MockPushSender{}, &MockSESService{}, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "missing-user",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was approved.",
	})

	assert.False(t, report.Delivered)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_HighPrioritySMS(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-5", "", "+15550100", "")
	expectAuditInsert(mock)

	cfg := testConfig()
	cfg.Push.Enabled = false
	cfg.Email.Enabled = false
	cfg.SMS.Enabled = true

	snsMock := &MockSNSService{}
	n := New(cfg, db, logger.NewNoOpLogger(), &MockPushSender{}, &MockSESService{}, snsMock)

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-5",
		Type:         models.NotificationTypeDirect,
		Title:        "Account notice",
		Body:         "Your account was banned.",
		Priority:     "high",
	})

	assert.True(t, report.Delivered)
	assert.Equal(t, models.ChannelSMS, report.Channel)
	assert.Equal(t, 1, snsMock.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifier_AuditInsertFailureIgnored(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectContactLookup(mock, "user-6", "", "", "ExponentPushToken[jkl]")
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(errors.New("audit table unavailable"))

	n := New(testConfig(), db, logger.NewNoOpLogger(), &MockPushSender{}, &MockSESService{}, &MockSNSService{})

	report := n.Notify(context.Background(), Message{
		RecipientUID: "user-6",
		Type:         models.NotificationTypeApplicationReviewed,
		Title:        "Application reviewed",
		Body:         "Your expert application was approved.",
	})

	assert.True(t, report.Delivered)

	assert.NoError(t, mock.ExpectationsWereMet())
}
