package repository

import (
	"allocbacktest/internal/db/models/postgres/public/model"
	. "allocbacktest/internal/db/models/postgres/public/table"
	"allocbacktest/internal/domain"
	"context"
	"database/sql"
	"fmt"
	"time"

	. "github.com/go-jet/jet/v2/postgres"
)

// AdjustedPriceRepository reads and writes split and dividend adjusted
// closes. they are served as the Close attribute
type AdjustedPriceRepository interface {
	PriceRepository
	Add(ctx context.Context, prices []domain.AssetPrice) error
}

type adjustedPriceRepositoryHandler struct {
	Db *sql.DB
}

func NewAdjustedPriceRepository(db *sql.DB) AdjustedPriceRepository {
	return adjustedPriceRepositoryHandler{
		Db: db,
	}
}

func (h adjustedPriceRepositoryHandler) Add(ctx context.Context, prices []domain.AssetPrice) error {
	type key struct {
		symbol string
		date   time.Time
	}
	// adjusted close wins over close when both are given
	byKey := map[key]domain.AssetPrice{}
	keys := []key{}
	for _, p := range prices {
		if p.Attribute != "" && p.Attribute != domain.AttributeClose && p.Attribute != domain.AttributeAdjClose {
			continue
		}
		if domain.IsAbsent(p.Price) {
			continue
		}
		k := key{symbol: p.Symbol, date: domain.NormalizeDate(p.Date)}
		existing, ok := byKey[k]
		if !ok {
			keys = append(keys, k)
		} else if existing.Attribute == domain.AttributeAdjClose {
			continue
		}
		byKey[k] = p
	}

	now := time.Now().UTC()
	adjPrices := []model.AdjustedPrice{}
	for _, k := range keys {
		adjPrices = append(adjPrices, model.AdjustedPrice{
			Symbol:    k.symbol,
			Date:      k.date,
			Price:     byKey[k].Price,
			CreatedAt: now,
		})
	}
	if len(adjPrices) == 0 {
		return nil
	}

	query := AdjustedPrice.
		INSERT(AdjustedPrice.MutableColumns).
		MODELS(adjPrices).
		ON_CONFLICT(
			AdjustedPrice.Symbol, AdjustedPrice.Date,
		).DO_UPDATE(
		SET(
			AdjustedPrice.Price.SET(AdjustedPrice.EXCLUDED.Price),
		),
	)

	_, err := query.ExecContext(ctx, h.Db)
	if err != nil {
		return fmt.Errorf("failed to add adjusted prices to db: %w", err)
	}

	return nil
}

func (h adjustedPriceRepositoryHandler) List(ctx context.Context, in ListPricesInput) ([]domain.AssetPrice, error) {
	if len(in.Symbols) == 0 {
		return []domain.AssetPrice{}, nil
	}

	symbols := []Expression{}
	for _, s := range in.Symbols {
		symbols = append(symbols, String(s))
	}
	conditions := []BoolExpression{
		AdjustedPrice.Symbol.IN(symbols...),
	}
	if !in.Start.IsZero() {
		conditions = append(conditions, AdjustedPrice.Date.GT_EQ(DateT(in.Start)))
	}
	if !in.End.IsZero() {
		conditions = append(conditions, AdjustedPrice.Date.LT_EQ(DateT(in.End)))
	}

	query := AdjustedPrice.
		SELECT(AdjustedPrice.AllColumns).
		WHERE(AND(conditions...)).
		ORDER_BY(AdjustedPrice.Symbol.ASC(), AdjustedPrice.Date.ASC())

	result := []model.AdjustedPrice{}
	err := query.QueryContext(ctx, h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices for %v: %w", in.Symbols, err)
	}

	out := []domain.AssetPrice{}
	for _, p := range result {
		out = append(out, domain.AssetPrice{
			Symbol:    p.Symbol,
			Attribute: domain.AttributeClose,
			Date:      p.Date,
			Price:     p.Price,
		})
	}

	return out, nil
}
