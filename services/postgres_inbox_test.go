package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flashbots/quorumcompute/crypto"
	"github.com/flashbots/quorumcompute/protocol"
	"github.com/stretchr/testify/require"
)

func newMockInbox(t *testing.T) (*PostgresInbox, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inbox_mail").WillReturnResult(sqlmock.NewResult(0, 0))
	inbox, err := NewPostgresInboxFromDB(db)
	require.NoError(t, err)
	return inbox, mock
}

func TestPostgresInboxPost(t *testing.T) {
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	inbox, mock := newMockInbox(t)

	mail := signedMail(t, key, "route-1", protocol.Success)
	body, err := protocol.SerializeMessage(mail)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO inbox_mail \(route, body\) VALUES \(\$1, \$2\)`).
		WithArgs("route-1", body).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, inbox.Post(context.Background(), mail))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInboxCollectOrdersById(t *testing.T) {
	_, key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	inbox, mock := newMockInbox(t)

	first, err := protocol.SerializeMessage(signedMail(t, key, "route-1", protocol.Success))
	require.NoError(t, err)
	second, err := protocol.SerializeMessage(signedMail(t, key, "route-1", protocol.CheckInbox))
	require.NoError(t, err)

	mock.ExpectQuery("DELETE FROM inbox_mail WHERE route = \\$1 RETURNING id, body").
		WithArgs("route-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).
			AddRow(int64(7), second).
			AddRow(int64(3), first))

	mail, err := inbox.Collect(context.Background(), "route-1")
	require.NoError(t, err)
	require.Len(t, mail, 2)
	require.Equal(t, protocol.Success, mail[0].Object.Response.Code)
	require.Equal(t, protocol.CheckInbox, mail[1].Object.Response.Code)

	// Mail read back from the database still verifies.
	_, signer, err := mail[0].Recover()
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)
	require.True(t, signer.Equal(pub))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInboxCollectRejectsCorruptRows(t *testing.T) {
	inbox, mock := newMockInbox(t)

	mock.ExpectQuery("DELETE FROM inbox_mail").
		WithArgs("route-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow(int64(1), []byte("{not json")))

	_, err := inbox.Collect(context.Background(), "route-1")
	require.ErrorContains(t, err, "decoding mail 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "inbox"}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=inbox sslmode=disable", cfg.ConnectionString())

	cfg.SSLMode = "require"
	require.Contains(t, cfg.ConnectionString(), "sslmode=require")
}
