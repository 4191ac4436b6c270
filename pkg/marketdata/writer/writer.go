// Package writer persists downloaded candles to disk.
package writer

import "github.com/rxtech-lab/argo-fleet/internal/types"

// CandleWriter receives candles for one symbol and exports them on Finalize.
type CandleWriter interface {
	// Initialize prepares the writer. Write fails until it has been called.
	Initialize() error
	Write(candle types.Candle) error
	// Finalize flushes pending rows and returns the path of the exported file.
	Finalize() (outputPath string, err error)
	Close() error
	OutputPath() string
}
