package ledger

import "time"

// Default configuration values
const (
	DefaultLockTTL      = 10 * time.Second
	DefaultLockAttempts = 3
	DefaultLockBackoff  = 50 * time.Millisecond

	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 50 * time.Millisecond

	DefaultDailyLimit   = int64(1_000_000)  // 10,000.00 in minor units
	DefaultMonthlyLimit = int64(10_000_000) // 100,000.00 in minor units
)

// Transfer reference suffixes linking the two sides of one transfer.
const (
	TransferOutSuffix = "_OUT"
	TransferInSuffix  = "_IN"
)
