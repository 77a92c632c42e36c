package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidExecutionType ErrorCode = 103
	ErrCodeInvalidFact          ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInvalidInstrument    ErrorCode = 106

	// Event bus errors (200-299)
	ErrCodeBusClosed          ErrorCode = 200
	ErrCodeSubscriptionClosed ErrorCode = 201

	// Ledger errors (300-399)
	ErrCodeLedgerKeyNotFound ErrorCode = 300
	ErrCodeIndexOutOfOrder   ErrorCode = 301

	// Order book errors (400-499)
	ErrCodeOrderNotFound      ErrorCode = 400
	ErrCodeOrderAlreadyExists ErrorCode = 401
	ErrCodeInvalidTransition  ErrorCode = 402
	ErrCodeOverFill           ErrorCode = 403
	ErrCodeUnknownChildOrder  ErrorCode = 404

	// Execution errors (500-599)
	ErrCodeOrderRateExceeded ErrorCode = 500
	ErrCodeNotionalTooLarge  ErrorCode = 501
	ErrCodeNotionalTooSmall  ErrorCode = 502
	ErrCodeNoMarketData      ErrorCode = 503

	// Venue errors (600-699)
	ErrCodeVenueUnavailable ErrorCode = 600
	ErrCodeVenueRejected    ErrorCode = 601
	ErrCodeVenueTimeout     ErrorCode = 602
	ErrCodeRetriesExhausted ErrorCode = 603

	// Persistence errors (700-799)
	ErrCodePersistenceAppend ErrorCode = 700
	ErrCodePersistenceFlush  ErrorCode = 701
	ErrCodeStoreInitFailed   ErrorCode = 702
	ErrCodeQueryFailed       ErrorCode = 703
)
