package smoke

import "time"

// Runner configuration constants.
const (
	DefaultLimit         = 20
	DefaultTimeout       = 30 * time.Second
	adminKeyHeader       = "X-Admin-Key"
	filePermission       = 0o600
	directoryPermission  = 0o750
	percentageMultiplier = 100
	maxScore             = 100
)
