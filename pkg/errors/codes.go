package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDateRange     ErrorCode = 102
	ErrCodeInvalidInterval      ErrorCode = 103
	ErrCodeInsufficientHistory  ErrorCode = 104
	ErrCodeInvalidRole          ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound ErrorCode = 200
	ErrCodeQueryFailed  ErrorCode = 201
	ErrCodeStoreFailed  ErrorCode = 202

	// Memory errors (300-399)
	ErrCodeIndexUnavailable  ErrorCode = 300
	ErrCodeIndexQueryFailed  ErrorCode = 301
	ErrCodeIndexInsertFailed ErrorCode = 302
	ErrCodeEmbeddingFailed   ErrorCode = 303

	// Generation errors (400-499)
	ErrCodeGenerationFailed ErrorCode = 400
	ErrCodeParseFailed      ErrorCode = 401

	// Backtest errors (600-699)
	ErrCodeBacktestStateNil    ErrorCode = 600
	ErrCodeBacktestInitFailed  ErrorCode = 601
	ErrCodeNoTradableBars      ErrorCode = 602
	ErrCodeArtifactWriteFailed ErrorCode = 603

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
)
