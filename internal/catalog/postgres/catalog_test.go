package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumart/cartcheckout/pkg/database"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

func TestCatalog_Lookup_Success(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	cat := NewCatalog(mock)

	rows := pgxmock.NewRows([]string{"id", "name", "unit_price"}).
		AddRow("prod-001", "Widget", int64(1000))

	mock.ExpectQuery("SELECT id, name, unit_price FROM products").
		WithArgs("prod-001").
		WillReturnRows(rows)

	p, err := cat.Lookup(context.Background(), "prod-001")
	require.NoError(t, err)
	assert.Equal(t, "prod-001", p.ID)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, int64(1000), p.UnitPrice)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_Lookup_NotFound(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	cat := NewCatalog(mock)

	mock.ExpectQuery("SELECT id, name, unit_price FROM products").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = cat.Lookup(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}
