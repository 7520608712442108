// internal/api/users/toggle-ban/handler_test.go
package toggleban

import (
	"context"
	"errors"
	"testing"

	"kalikascan-admin/internal/common/auth"
	autherrors "kalikascan-admin/internal/common/errors"
	"kalikascan-admin/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

type stubIdentity struct {
	err      error
	calls    int
	lastUID  string
	disabled bool
}

func (s *stubIdentity) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	s.calls++
	s.lastUID = uid
	s.disabled = disabled
	return s.err
}

func testPrincipal() *auth.Principal {
	return &auth.Principal{UID: "admin-001", Admin: true}
}

func TestHandler_Execute_BanUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT banned FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"banned"}).AddRow(false))
	mock.ExpectExec(`UPDATE users SET banned`).
		WithArgs(true, "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	identity := &stubIdentity{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, identity)

	output, err := handler.Execute(context.Background(), testPrincipal(), &Input{UID: "user-001"})

	assert.NoError(t, err)
	assert.True(t, output.Banned)
	assert.Equal(t, 1, identity.calls)
	assert.True(t, identity.disabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnbanUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT banned FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"banned"}).AddRow(true))
	mock.ExpectExec(`UPDATE users SET banned`).
		WithArgs(false, "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	identity := &stubIdentity{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, identity)

	output, err := handler.Execute(context.Background(), testPrincipal(), &Input{UID: "user-001"})

	assert.NoError(t, err)
	assert.False(t, output.Banned)
	assert.False(t, identity.disabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SelfBanRefused(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	identity := &stubIdentity{}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, identity)

	output, err := handler.Execute(context.Background(), testPrincipal(), &Input{UID: "admin-001"})

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*autherrors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, autherrors.ErrCodeForbidden, stdErr.Code)
	assert.Equal(t, 0, identity.calls)
}

func TestHandler_Execute_UserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT banned FROM users`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"banned"}))
	mock.ExpectRollback()

	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, &stubIdentity{})

	_, err = handler.Execute(context.Background(), testPrincipal(), &Input{UID: "missing"})

	stdErr, ok := err.(*autherrors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, autherrors.ErrCodeNotFound, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_IdentityFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT banned FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"banned"}).AddRow(false))
	mock.ExpectExec(`UPDATE users SET banned`).
		WithArgs(true, "user-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	identity := &stubIdentity{err: errors.New("identity provider unavailable")}
	handler := NewHandler(LoadConfig(), db, logger.NewNoOpLogger(), nil, identity)

	output, err := handler.Execute(context.Background(), testPrincipal(), &Input{UID: "user-001"})

	assert.Error(t, err)
	assert.Nil(t, output)

	assert.NoError(t, mock.ExpectationsWereMet())
}
