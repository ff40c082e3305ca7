package repository

import (
	. "allocbacktest/internal/db/models/postgres/public/table"
	"allocbacktest/internal/domain"
	"allocbacktest/internal/util"
	"context"
	"testing"

	. "github.com/go-jet/jet/v2/postgres"
	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestAdjustedPriceRepository(t *testing.T) {
	db, err := util.NewTestDb()
	require.NoError(t, err)
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("test db unavailable: %v", err)
	}

	ctx := context.Background()
	symbol := "TEST_ADJ"
	cleanup := func() {
		_, err := AdjustedPrice.DELETE().
			WHERE(AdjustedPrice.Symbol.EQ(String(symbol))).
			ExecContext(ctx, db)
		require.NoError(t, err)
	}
	cleanup()
	defer cleanup()

	handler := NewAdjustedPriceRepository(db)

	err = handler.Add(ctx, []domain.AssetPrice{
		{Symbol: symbol, Attribute: domain.AttributeClose, Price: 10, Date: util.NewDate(2020, 1, 2)},
		{Symbol: symbol, Attribute: domain.AttributeAdjClose, Price: 9.5, Date: util.NewDate(2020, 1, 2)},
		{Symbol: symbol, Attribute: domain.AttributeOpen, Price: 11, Date: util.NewDate(2020, 1, 3)},
		{Symbol: symbol, Price: 12, Date: util.NewDate(2020, 1, 3)},
		{Symbol: symbol, Price: 13, Date: util.NewDate(2020, 1, 6)},
	})
	require.NoError(t, err)

	// upsert
	err = handler.Add(ctx, []domain.AssetPrice{
		{Symbol: symbol, Price: 12.5, Date: util.NewDate(2020, 1, 3)},
	})
	require.NoError(t, err)

	prices, err := handler.List(ctx, ListPricesInput{
		Symbols: []string{symbol},
		End:     util.NewDate(2020, 1, 3),
	})
	require.NoError(t, err)

	require.Equal(t, "", cmp.Diff([]domain.AssetPrice{
		{Symbol: symbol, Attribute: domain.AttributeClose, Price: 9.5, Date: util.NewDate(2020, 1, 2)},
		{Symbol: symbol, Attribute: domain.AttributeClose, Price: 12.5, Date: util.NewDate(2020, 1, 3)},
	}, prices))
}
