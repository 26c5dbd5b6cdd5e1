package commands

// CLI-specific constants
const (
	// TimestampFormat renders record timestamps in listings
	TimestampFormat = "2006-01-02 15:04:05"

	// DefaultHistoryLimit caps 'history list' output
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit caps 'history search' output
	DefaultHistorySearchLimit = 50
	// DefaultPurgeMaxAgeHours is the default purge cutoff (7 days)
	DefaultPurgeMaxAgeHours = 168
)
