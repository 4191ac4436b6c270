package backtest

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// DataSource reads historical candles from a parquet or csv file through an
// in-memory DuckDB view.
type DataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// OpenDataSource creates a market_data view over path. Files ending in .csv
// are read with read_csv_auto, anything else as parquet.
func OpenDataSource(path string, log *logger.Logger) (*DataSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open DuckDB", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW has no squirrel builder.
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM %s('%s')`, reader, strings.ReplaceAll(path, "'", "''"))
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load %s", path)
	}

	log.Debug("Opened market data", zap.String("path", path), zap.String("reader", reader))

	return &DataSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (d *DataSource) where(b squirrel.SelectBuilder, start, end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		b = b.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		b = b.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return b
}

// Count returns the number of bars in the optional [start, end] window.
func (d *DataSource) Count(ctx context.Context, start, end optional.Option[time.Time]) (int, error) {
	query, args, err := d.where(d.sq.Select("COUNT(*)").From("market_data"), start, end).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count market data", err)
	}

	return count, nil
}

// ReadAll yields bars oldest first. A yielded error ends the sequence.
func (d *DataSource) ReadAll(ctx context.Context, start, end optional.Option[time.Time]) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		query, args, err := d.where(
			d.sq.Select("time", "open", "high", "low", "close", "volume").From("market_data"),
			start, end,
		).OrderBy("time ASC").ToSql()
		if err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build select query", err))

			return
		}

		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var c types.Candle
			if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
				yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan market data", err))

				return
			}

			c.Time = c.Time.UTC()

			if !yield(c, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read market data", err))
		}
	}
}

func (d *DataSource) Close() error {
	return d.db.Close()
}

// LoadCandles reads every bar of path within the optional window.
func LoadCandles(ctx context.Context, path string, start, end optional.Option[time.Time], log *logger.Logger) ([]types.Candle, error) {
	ds, err := OpenDataSource(path, log)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	var candles []types.Candle

	for candle, err := range ds.ReadAll(ctx, start, end) {
		if err != nil {
			return nil, err
		}

		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, errors.Newf(errors.ErrCodeInsufficientData, "no market data in %s", path)
	}

	return candles, nil
}
