// internal/api/applications/review-application/handler_test.go
package reviewapplication

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kalikascan-admin/internal/common/auth"
	"kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/notifier"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

type stubNotifier struct {
	report notifier.Report
	calls  int
	last   notifier.Message
}

func (s *stubNotifier) NotifyWithTimeout(ctx context.Context, msg notifier.Message) notifier.Report {
	s.calls++
	s.last = msg
	return s.report
}

func strPtr(s string) *string { return &s }

func newJSONRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodPost, "/api/admin/expert-applications/review", strings.NewReader(body))
}

func createTestInput(decision string) *Input {
	return &Input{
		ApplicationID: "app-001",
		ApplicantID:   "user-001",
		Decision:      decision,
		AdminNote:     strPtr("reviewed in test"),
	}
}

func testPrincipal() *auth.Principal {
	return &auth.Principal{UID: "admin-001", Admin: true}
}

func expectReads(mock sqlmock.Sqlmock, globalUserID, globalStatus, role, nestedUID, nestedStatus string) {
	mock.ExpectQuery(`SELECT user_id, status FROM expert_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow(globalUserID, globalStatus))

	mock.ExpectQuery(`SELECT role FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(role))

	mock.ExpectQuery(`SELECT applicant_uid, status FROM user_expert_applications`).
		WithArgs("user-001", "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"applicant_uid", "status"}).AddRow(nestedUID, nestedStatus))
}

func expectWrites(mock sqlmock.Sqlmock, status, role string, reviewedAt time.Time) {
	mock.ExpectQuery(`UPDATE expert_applications`).
		WithArgs(status, "admin-001", "reviewed in test", "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"reviewed_at"}).AddRow(reviewedAt))

	mock.ExpectExec(`UPDATE user_expert_applications`).
		WithArgs(status, "admin-001", "reviewed in test", "user-001", "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs(role, "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

// ==========================
// Request Contract Tests
// ==========================

func TestHandler_DecodeInput_AcceptsReviewBody(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewNoOpLogger(), nil, &stubNotifier{})

	req := newJSONRequest(t, `{
		"applicationId": "app-001",
		"applicantId": "user-001",
		"decision": "approved",
		"adminNote": "Great portfolio"
	}`)

	input, err := handler.decodeInput(req)

	assert.NoError(t, err)
	assert.Equal(t, "app-001", input.ApplicationID)
	assert.Equal(t, "user-001", input.ApplicantID)
	assert.Equal(t, "approved", input.Decision)
	assert.NotNil(t, input.AdminNote)
	assert.Equal(t, "Great portfolio", *input.AdminNote)
}

func TestHandler_DecodeInput_NullAdminNote(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewNoOpLogger(), nil, &stubNotifier{})

	req := newJSONRequest(t, `{
		"applicationId": "app-001",
		"applicantId": "user-001",
		"decision": "rejected",
		"adminNote": null
	}`)

	input, err := handler.decodeInput(req)

	assert.NoError(t, err)
	assert.Nil(t, input.AdminNote)
}

func TestHandler_DecodeInput_RejectsUnknownDecision(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewNoOpLogger(), nil, &stubNotifier{})

	req := newJSONRequest(t, `{
		"applicationId": "app-001",
		"applicantId": "user-001",
		"decision": "approve"
	}`)

	_, err := handler.decodeInput(req)

	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ApproveSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	reviewedAt := time.Now().UTC()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	expectWrites(mock, "approved", "expert", reviewedAt)
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: true, Channel: "push"}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.True(t, output.Success)
	assert.Equal(t, "approved", output.Status)
	assert.Equal(t, "app-001", output.ApplicationID)
	assert.True(t, output.Notification.Delivered)

	_, parseErr := time.Parse(time.RFC3339, output.ReviewedAt)
	assert.NoError(t, parseErr)

	// Applicant notification fires exactly once, after commit
	assert.Equal(t, 1, n.calls)
	assert.Equal(t, "user-001", n.last.RecipientUID)
	assert.Equal(t, "approved", n.last.Data["status"])
	assert.Equal(t, "app-001", n.last.Data["applicationId"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RejectSetsRegularRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	expectWrites(mock, "rejected", "regular", time.Now().UTC())
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: true}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("rejected"))

	assert.NoError(t, err)
	assert.Equal(t, "rejected", output.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AbsentNoteStoresNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	mock.ExpectQuery(`UPDATE expert_applications`).
		WithArgs("approved", "admin-001", nil, "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"reviewed_at"}).AddRow(time.Now().UTC()))
	mock.ExpectExec(`UPDATE user_expert_applications`).
		WithArgs("approved", "admin-001", nil, "user-001", "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs("expert", "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: true}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	input := createTestInput("approved")
	input.AdminNote = nil

	output, err := handler.Execute(context.Background(), testPrincipal(), input)

	assert.NoError(t, err)
	assert.True(t, output.Success)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Precondition Tests
// ==========================

func TestHandler_Execute_ApplicationNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM expert_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}))
	mock.ExpectRollback()

	n := &stubNotifier{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeNotFound, stdErr.Code)
	assert.Equal(t, 0, n.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UserNotFoundBeforeNestedRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// A missing user record surfaces as NotFound("user") without the nested
	// projection ever being read.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM expert_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow("user-001", "pending"))
	mock.ExpectQuery(`SELECT role FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))
	mock.ExpectRollback()

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, &stubNotifier{})

	_, err = handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeNotFound, stdErr.Code)
	assert.Contains(t, stdErr.Message, "user")
	assert.NotContains(t, stdErr.Message, "nestedApplication")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NestedApplicationNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM expert_applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status"}).AddRow("user-001", "pending"))
	mock.ExpectQuery(`SELECT role FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("regular"))
	mock.ExpectQuery(`SELECT applicant_uid, status FROM user_expert_applications`).
		WithArgs("user-001", "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"applicant_uid", "status"}))
	mock.ExpectRollback()

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, &stubNotifier{})

	_, err = handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeNotFound, stdErr.Code)
	assert.Contains(t, stdErr.Message, "nestedApplication")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_GlobalUIDMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "someone-else", "pending", "regular", "user-001", "pending")
	mock.ExpectRollback()

	n := &stubNotifier{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeIntegrityMismatch, stdErr.Code)
	assert.Equal(t, "global", stdErr.Metadata["projection"])
	assert.Equal(t, 0, n.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NestedUIDMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "someone-else", "pending")
	mock.ExpectRollback()

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, &stubNotifier{})

	_, err = handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeIntegrityMismatch, stdErr.Code)
	assert.Equal(t, "nested", stdErr.Metadata["projection"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AlreadyReviewed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "approved", "expert", "user-001", "approved")
	mock.ExpectRollback()

	n := &stubNotifier{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("rejected"))

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeAlreadyReviewed, stdErr.Code)
	assert.Equal(t, "approved", stdErr.Metadata["currentStatus"])
	assert.Equal(t, 0, n.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Atomicity Tests
// ==========================

func TestHandler_Execute_NestedWriteFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	mock.ExpectQuery(`UPDATE expert_applications`).
		WithArgs("approved", "admin-001", "reviewed in test", "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"reviewed_at"}).AddRow(time.Now().UTC()))
	mock.ExpectExec(`UPDATE user_expert_applications`).
		WithArgs("approved", "admin-001", "reviewed in test", "user-001", "app-001").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	n := &stubNotifier{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, stdErr.Code)

	// No notification leaves the building when the transaction rolls back
	assert.Equal(t, 0, n.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	expectWrites(mock, "approved", "expert", time.Now().UTC())
	mock.ExpectCommit().WillReturnError(context.DeadlineExceeded)

	n := &stubNotifier{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.Error(t, err)
	assert.Nil(t, output)
	assert.Equal(t, 0, n.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Notification Tests
// ==========================

func TestHandler_Execute_NotificationCarriesAdminNote(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	mock.ExpectQuery(`UPDATE expert_applications`).
		WithArgs("approved", "admin-001", "Great portfolio", "app-001").
		WillReturnRows(sqlmock.NewRows([]string{"reviewed_at"}).AddRow(time.Now().UTC()))
	mock.ExpectExec(`UPDATE user_expert_applications`).
		WithArgs("approved", "admin-001", "Great portfolio", "user-001", "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs("expert", "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: true}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	input := createTestInput("approved")
	input.AdminNote = strPtr("Great portfolio")

	_, err = handler.Execute(context.Background(), testPrincipal(), input)

	assert.NoError(t, err)
	assert.Equal(t, "Expert application approved", n.last.Title)
	assert.True(t, strings.HasPrefix(n.last.Body, "Congratulations!"))
	assert.Contains(t, n.last.Body, "Admin note: Great portfolio")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RejectedNotificationTitle(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	expectWrites(mock, "rejected", "regular", time.Now().UTC())
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: true}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	_, err = handler.Execute(context.Background(), testPrincipal(), createTestInput("rejected"))

	assert.NoError(t, err)
	assert.Equal(t, "Expert application rejected", n.last.Title)
	assert.Contains(t, n.last.Body, "rejected")
	assert.Contains(t, n.last.Body, "Admin note: reviewed in test")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NotificationFailureDoesNotFailReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectReads(mock, "user-001", "pending", "regular", "user-001", "pending")
	expectWrites(mock, "approved", "expert", time.Now().UTC())
	mock.ExpectCommit()

	n := &stubNotifier{report: notifier.Report{Attempted: true, Delivered: false, Detail: "push provider unavailable"}}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, n)

	output, err := handler.Execute(context.Background(), testPrincipal(), createTestInput("approved"))

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.True(t, output.Success)
	assert.Equal(t, "approved", output.Status)
	assert.True(t, output.Notification.Attempted)
	assert.False(t, output.Notification.Delivered)
	assert.Equal(t, "push provider unavailable", output.Notification.Detail)

	assert.NoError(t, mock.ExpectationsWereMet())
}
