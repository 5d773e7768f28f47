package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"key", "value"}).
			AddRow("enabled", "true").
			AddRow("title", "Tarjeta").
			AddRow("description", "Pagar con Bancard").
			AddRow("environment", "production").
			AddRow("public_key", "pub").
			AddRow("private_key", "priv").
			AddRow("debug", "false")

		mock.ExpectQuery(`SELECT key, value FROM gateway_settings`).WillReturnRows(rows)

		s, err := repo.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, s.Enabled)
		assert.Equal(t, "Tarjeta", s.Title)
		assert.Equal(t, "production", s.Environment)
		assert.Equal(t, "pub", s.PublicKey)
		assert.Equal(t, "priv", s.PrivateKey)
		assert.False(t, s.Debug)
		assert.True(t, s.Available())
	})

	t.Run("MissingKeysFallBackToDefaults", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"key", "value"}).
			AddRow("public_key", "pub")

		mock.ExpectQuery(`SELECT key, value FROM gateway_settings`).WillReturnRows(rows)

		s, err := repo.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "staging", s.Environment)
		assert.Equal(t, "Tarjeta de Crédito/Débito", s.Title)
		// no private key configured yet
		assert.False(t, s.Available())
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT key, value FROM gateway_settings`).
			WillReturnError(errors.New("db down"))

		_, err := repo.Load(context.Background())
		assert.Error(t, err)
	})
}

func TestRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	s := Defaults()
	s.PublicKey = "pub"
	s.PrivateKey = "priv"

	mock.ExpectBegin()
	for range 7 {
		mock.ExpectExec(`INSERT INTO gateway_settings`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}
