package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

const testSecret = "test-secret"

func newAccountService(t *testing.T) (*AccountService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, repos := newMockDB(t)
	return NewAccountService(db, repos, nil, AccountConfig{JWTSecret: testSecret, SessionTTL: time.Hour, BcryptCost: 4}), mock
}

func userRow(t *testing.T, password string, active bool) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	return sqlmock.NewRows(userColumns).AddRow(7, "ana@example.com", hash, "Ana Diaz", "client", active, fixedNow, fixedNow)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, mock := newAccountService(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM users WHERE email=\? LIMIT 1`).WillReturnError(sql.ErrNoRows)
	_, err := svc.Login(ctx, Login{Email: "nobody@example.com", Password: "whatever"})
	assertKind(t, err, apperror.KindUnauthorized)

	mock.ExpectQuery(`FROM users WHERE email=\? LIMIT 1`).WillReturnRows(userRow(t, "correct-horse", true))
	_, err = svc.Login(ctx, Login{Email: "ana@example.com", Password: "wrong-horse"})
	assertKind(t, err, apperror.KindUnauthorized)

	mock.ExpectQuery(`FROM users WHERE email=\? LIMIT 1`).WillReturnRows(userRow(t, "correct-horse", false))
	_, err = svc.Login(ctx, Login{Email: "ana@example.com", Password: "correct-horse"})
	assertKind(t, err, apperror.KindUnauthorized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginStoresHashedSession(t *testing.T) {
	svc, mock := newAccountService(t)

	mock.ExpectQuery(`FROM users WHERE email=\? LIMIT 1`).WillReturnRows(userRow(t, "correct-horse", true))
	mock.ExpectExec(`INSERT INTO sessions \(user_id, token_hash, expires_at\)`).
		WithArgs(uint64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM clients WHERE user_id=\? LIMIT 1`).WithArgs(uint64(7)).WillReturnRows(clientRow(3))

	s, err := svc.Login(context.Background(), Login{Email: "ana@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, model.RoleClient, s.User.Role)
	require.NotNil(t, s.Client)
	assert.Equal(t, uint64(3), s.Client.ID)

	claims, err := utils.ParseSessionToken(testSecret, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "client", claims.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate(t *testing.T) {
	svc, mock := newAccountService(t)
	tok, err := utils.NewSessionToken(testSecret, 7, "staff", time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM sessions WHERE token_hash=\? LIMIT 1`).WithArgs(utils.HashSessionID(tok.SID)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(7, time.Now().Add(time.Hour), nil))
	actor, sid, err := svc.Authenticate(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: 7, Role: model.RoleStaff}, actor)
	assert.Equal(t, tok.SID, sid)

	// revoked
	mock.ExpectQuery(`FROM sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(7, time.Now().Add(time.Hour), time.Now()))
	_, _, err = svc.Authenticate(context.Background(), tok.Token)
	assertKind(t, err, apperror.KindUnauthorized)

	_, _, err = svc.Authenticate(context.Background(), "not-a-token")
	assertKind(t, err, apperror.KindUnauthorized)

	other, err := utils.NewSessionToken("other-secret", 7, "staff", time.Hour)
	require.NoError(t, err)
	_, _, err = svc.Authenticate(context.Background(), other.Token)
	assertKind(t, err, apperror.KindUnauthorized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterClientDuplicateDocument(t *testing.T) {
	svc, mock := newAccountService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM clients WHERE document_number=\?`).WithArgs("123").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.RegisterClient(context.Background(), RegisterClient{
		Email: "ana@example.com", Password: "correct-horse", FirstName: "Ana", LastName: "Diaz", DocumentNumber: "123",
	})
	assertKind(t, err, apperror.KindConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterClientCreatesUserAndProfile(t *testing.T) {
	svc, mock := newAccountService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM clients`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO users`).WithArgs("ana@example.com", sqlmock.AnyArg(), "Ana Diaz", "client").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(`FROM clients WHERE id=\? LIMIT 1`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(clientColumns).
			AddRow(3, 7, "Ana", "Diaz", "ana@example.com", "", "", "123", "", true, fixedNow, fixedNow))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM users WHERE id=\? LIMIT 1`).WillReturnRows(userRow(t, "correct-horse", true))

	p, err := svc.RegisterClient(context.Background(), RegisterClient{
		Email: "ana@example.com", Password: "correct-horse", FirstName: "Ana", LastName: "Diaz", DocumentNumber: "123",
	})
	require.NoError(t, err)
	require.NotNil(t, p.Client)
	require.NotNil(t, p.Client.UserID)
	assert.Equal(t, uint64(7), *p.Client.UserID)
	assert.Equal(t, model.RoleClient, p.User.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	svc, mock := newAccountService(t)
	admin := Actor{UserID: 1, Role: model.RoleAdmin}

	assertKind(t, svc.DeleteUser(context.Background(), admin, 1), apperror.KindValidation)

	mock.ExpectQuery(`FROM users WHERE id=\? LIMIT 1`).WillReturnRows(userRow(t, "pw-pw-pw-pw", true))
	mock.ExpectQuery(`FROM reservations`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	assertKind(t, svc.DeleteUser(context.Background(), admin, 7), apperror.KindValidation)

	mock.ExpectQuery(`FROM users WHERE id=\? LIMIT 1`).WillReturnRows(userRow(t, "pw-pw-pw-pw", true))
	mock.ExpectQuery(`FROM reservations`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET is_active=0 WHERE id=\?`).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE clients SET is_active=0 WHERE user_id=\?`).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE sessions SET revoked_at`).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.DeleteUser(context.Background(), admin, 7))

	assert.NoError(t, mock.ExpectationsWereMet())
}
