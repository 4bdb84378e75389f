package allocation

import (
	"fmt"
	"os"

	"github.com/investbot/balancer/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// bucketFile is the TOML layout of a bucket table override:
//
//	tolerance = 2
//
//	[[buckets]]
//	id = "core-equity"
//	target_pct = 20
//	rule = "fixed-ticker"
//	tickers = ["TMOS@"]
//	purchase_ticker = "TMOS@"
type bucketFile struct {
	Tolerance any              `toml:"tolerance"`
	Buckets   []bucketFileItem `toml:"buckets"`
}

type bucketFileItem struct {
	ID                 string   `toml:"id"`
	TargetPct          any      `toml:"target_pct"`
	ConcentrationLimit any      `toml:"concentration_limit"`
	Rule               string   `toml:"rule"`
	Tickers            []string `toml:"tickers"`
	InstrumentType     string   `toml:"instrument_type"`
	PurchaseTicker     string   `toml:"purchase_ticker"`
}

// LoadBucketFile reads a bucket table from a TOML file.
func LoadBucketFile(path string) (*BucketTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bucket file: %w", err)
	}
	return ParseBucketFile(data)
}

// ParseBucketFile parses a TOML bucket table.
func ParseBucketFile(data []byte) (*BucketTable, error) {
	var file bucketFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bucket file: %w", err)
	}

	tolerance := decimal.NewFromInt(2)
	if file.Tolerance != nil {
		t, err := tomlDecimal(file.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("tolerance: %w", err)
		}
		tolerance = t
	}

	buckets := make([]BucketConfig, 0, len(file.Buckets))
	for _, item := range file.Buckets {
		target, err := tomlDecimal(item.TargetPct)
		if err != nil {
			return nil, fmt.Errorf("bucket %s target_pct: %w", item.ID, err)
		}

		cfg := BucketConfig{
			ID:             BucketID(item.ID),
			TargetPct:      target,
			PurchaseTicker: item.PurchaseTicker,
			Rule: ClassificationRule{
				Kind:    RuleKind(item.Rule),
				Tickers: item.Tickers,
			},
		}
		if item.InstrumentType != "" {
			cfg.Rule.InstrumentType = domain.ParseInstrumentType(item.InstrumentType)
		}
		if item.ConcentrationLimit != nil {
			limit, err := tomlDecimal(item.ConcentrationLimit)
			if err != nil {
				return nil, fmt.Errorf("bucket %s concentration_limit: %w", item.ID, err)
			}
			cfg.ConcentrationLimit = &limit
		}
		buckets = append(buckets, cfg)
	}

	return NewBucketTable(buckets, tolerance)
}

func tomlDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	case nil:
		return decimal.Zero, fmt.Errorf("missing value")
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
