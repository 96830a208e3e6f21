package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/model"
)

// Aggregate computes record count, mean content length and the creation time range.
func (s *SQLiteStore) Aggregate(ctx context.Context) (*Aggregate, error) {
	var oldest, newest sql.NullString
	agg := &Aggregate{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(LENGTH(content)), 0), MIN(created_at), MAX(created_at)
		FROM records`).Scan(&agg.Count, &agg.AverageContentLength, &oldest, &newest)
	if err != nil {
		return nil, goerr.Wrap(model.ErrStorage, "aggregate records", goerr.V("cause", err.Error()))
	}

	if oldest.Valid {
		t, err := time.Parse(timeFormat, oldest.String)
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorage, "parse created_at", goerr.V("value", oldest.String))
		}
		t = t.UTC()
		agg.Oldest = &t
	}
	if newest.Valid {
		t, err := time.Parse(timeFormat, newest.String)
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorage, "parse created_at", goerr.V("value", newest.String))
		}
		t = t.UTC()
		agg.Newest = &t
	}
	return agg, nil
}
