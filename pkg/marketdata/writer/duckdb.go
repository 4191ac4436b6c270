package writer

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// ParquetWriter buffers candles in an in-memory DuckDB table and copies the
// table to a parquet file on Finalize.
type ParquetWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	symbol     string
	outputPath string
	rows       int
}

var _ CandleWriter = (*ParquetWriter)(nil)

func NewParquetWriter(symbol, outputPath string) *ParquetWriter {
	return &ParquetWriter{symbol: symbol, outputPath: outputPath}
}

func (w *ParquetWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to open DuckDB connection", err)
	}

	_, err = w.db.Exec(`
		CREATE TABLE market_data (
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to begin transaction", err)
	}

	w.stmt, err = w.tx.Prepare(`
		INSERT INTO market_data (time, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		w.tx, w.db = nil, nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to prepare statement", err)
	}

	return nil
}

func (w *ParquetWriter) Write(candle types.Candle) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	_, err := w.stmt.Exec(candle.Time, w.symbol, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to insert candle", err)
	}

	w.rows++

	return nil
}

// Finalize commits the buffered rows and writes them ordered by time.
func (w *ParquetWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	if w.stmt != nil {
		w.stmt.Close()
		w.stmt = nil
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()
		w.tx = nil

		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	path := strings.ReplaceAll(w.outputPath, "'", "''")

	_, err := w.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM market_data ORDER BY time) TO '%s' (FORMAT PARQUET)`, path))
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to export %s", w.outputPath)
	}

	return w.outputPath, nil
}

func (w *ParquetWriter) Close() error {
	var errs []error

	if w.stmt != nil {
		errs = append(errs, w.stmt.Close())
		w.stmt = nil
	}

	if w.tx != nil {
		// Finalize was never reached; the rows are discarded.
		w.tx.Rollback()
		w.tx = nil
	}

	if w.db != nil {
		errs = append(errs, w.db.Close())
		w.db = nil
	}

	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close writer", err)
	}

	return nil
}

func (w *ParquetWriter) OutputPath() string {
	return w.outputPath
}

// Rows reports how many candles were written.
func (w *ParquetWriter) Rows() int {
	return w.rows
}
