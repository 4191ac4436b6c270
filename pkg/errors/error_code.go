package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown            ErrorCode = 1
	ErrCodeInvariantViolation ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidTakeProfit    ErrorCode = 103
	ErrCodeInvalidStopLoss      ErrorCode = 104
	ErrCodeInsufficientData     ErrorCode = 105
	ErrCodeInvalidPeriod        ErrorCode = 106
	ErrCodeMissingParameter     ErrorCode = 107
	ErrCodeInvalidVersion       ErrorCode = 108
	ErrCodeInvalidTimeframe     ErrorCode = 109
	ErrCodeInvalidRange         ErrorCode = 110

	// Data/Persistence errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodePersistenceFailed     ErrorCode = 203
	ErrCodeCredentialsMissing    ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound     ErrorCode = 400
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeVersionMismatch      ErrorCode = 403

	// Trading/Exchange errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodePositionNotFound    ErrorCode = 501
	ErrCodeMarketDataMissing   ErrorCode = 502
	ErrCodeExchangeUnavailable ErrorCode = 503
	ErrCodeUnsupportedExchange ErrorCode = 504
	ErrCodeCancelFailed        ErrorCode = 505

	// Backtest/Search errors (600-699)
	ErrCodeBacktestInitFailed  ErrorCode = 600
	ErrCodeBacktestConfigError ErrorCode = 601
	ErrCodeSearchNoCandidates  ErrorCode = 602
	ErrCodeBacktestFailed      ErrorCode = 603

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeInvalidProvider       ErrorCode = 702
	ErrCodeMarketDataWriteFailed ErrorCode = 703

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800

	// Worker/Registry errors (900-999)
	ErrCodeWorkerNotFound       ErrorCode = 900
	ErrCodeWorkerStartFailed    ErrorCode = 901
	ErrCodeWorkerStopTimeout    ErrorCode = 902
	ErrCodeEntitlementLapsed    ErrorCode = 903
	ErrCodeReconciliationFailed ErrorCode = 904

	// Job errors (1000-1099)
	ErrCodeJobBusy   ErrorCode = 1000
	ErrCodeJobFailed ErrorCode = 1001
	ErrCodeJobClosed ErrorCode = 1002

	// Risk/Circuit errors (1100-1199)
	ErrCodeRiskCheckFailed ErrorCode = 1100
	ErrCodeCircuitOpen     ErrorCode = 1101
)

// fatalCodes are programming-defect class errors: the worker stops and is not retried.
var fatalCodes = map[ErrorCode]struct{}{
	ErrCodeInvariantViolation:   {},
	ErrCodeStrategyRuntimeError: {},
}

var categories = []struct {
	upTo ErrorCode
	name string
}{
	{99, "general"},
	{199, "validation"},
	{299, "data"},
	{399, "indicator"},
	{499, "strategy"},
	{599, "trading"},
	{699, "backtest"},
	{799, "market_data"},
	{899, "callback"},
	{999, "worker"},
	{1099, "job"},
	{1199, "risk"},
}

// Category names the range a code belongs to. Codes outside every range are "general".
func (c ErrorCode) Category() string {
	if c > 0 {
		for _, r := range categories {
			if c <= r.upTo {
				return r.name
			}
		}
	}

	return "general"
}
