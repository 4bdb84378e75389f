package clientdata

import "time"

// TTL constants, added to time.Now() when storing.
const (
	TTLOpenFIGI     = 30 * 24 * time.Hour // ticker-to-FIGI mappings rarely change
	TTLInstrument   = 7 * 24 * time.Hour  // lot size and name
	TTLCurrentPrice = 10 * time.Minute
)
