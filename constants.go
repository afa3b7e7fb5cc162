package picolog

import (
	"time"

	"github.com/go-picolog/picolog/internal/constants"
)

// Re-export constants for public API.
const (
	DefaultCapacity     = constants.DefaultCapacity
	DefaultBlockSize    = constants.DefaultBlockSize
	DefaultPageCount    = constants.DefaultPageCount
	DefaultRingEntries  = constants.DefaultRingEntries
	MaxRecordSize       = constants.MaxRecordSize
	DefaultFlushInterval time.Duration = constants.DefaultFlushInterval
	DefaultPollInterval  time.Duration = constants.DefaultPollInterval
)
