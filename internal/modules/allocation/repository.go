package allocation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/investbot/balancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoBucketTable is returned when config.db holds no bucket configuration.
var ErrNoBucketTable = errors.New("no bucket table configured")

const toleranceKey = "deviation_tolerance"

// Repository persists the bucket table.
// Database: config.db (bucket_configs, allocation_settings tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// GetBucketTable loads the bucket table in configured order.
func (r *Repository) GetBucketTable() (*BucketTable, error) {
	rows, err := r.db.Query(`
		SELECT id, target_pct, concentration_limit, rule_kind, rule_tickers,
		       rule_instrument_type, purchase_ticker
		FROM bucket_configs
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket configs: %w", err)
	}
	defer rows.Close()

	var buckets []BucketConfig
	for rows.Next() {
		var (
			id, target, kind, tickersJSON, instrumentType, purchase string
			limit                                                   sql.NullString
		)
		if err := rows.Scan(&id, &target, &limit, &kind, &tickersJSON, &instrumentType, &purchase); err != nil {
			return nil, fmt.Errorf("failed to scan bucket config: %w", err)
		}

		cfg := BucketConfig{
			ID:             BucketID(id),
			PurchaseTicker: purchase,
			Rule: ClassificationRule{
				Kind:           RuleKind(kind),
				InstrumentType: domain.InstrumentType(instrumentType),
			},
		}
		if cfg.TargetPct, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("failed to parse target for %s: %w", id, err)
		}
		if limit.Valid {
			l, err := decimal.NewFromString(limit.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse concentration limit for %s: %w", id, err)
			}
			cfg.ConcentrationLimit = &l
		}
		if err := json.Unmarshal([]byte(tickersJSON), &cfg.Rule.Tickers); err != nil {
			return nil, fmt.Errorf("failed to parse tickers for %s: %w", id, err)
		}

		buckets = append(buckets, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket configs: %w", err)
	}

	if len(buckets) == 0 {
		return nil, ErrNoBucketTable
	}

	tolerance, err := r.getTolerance()
	if err != nil {
		return nil, err
	}

	return NewBucketTable(buckets, tolerance)
}

func (r *Repository) getTolerance() (decimal.Decimal, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM allocation_settings WHERE key = ?", toleranceKey).Scan(&value)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrNoBucketTable
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get tolerance: %w", err)
	}
	tolerance, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse tolerance: %w", err)
	}
	return tolerance, nil
}

// SaveBucketTable replaces the stored bucket table in one transaction.
func (r *Repository) SaveBucketTable(table *BucketTable) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM bucket_configs"); err != nil {
		return fmt.Errorf("failed to clear bucket configs: %w", err)
	}

	now := time.Now().Unix()
	for i, b := range table.buckets {
		tickers, err := json.Marshal(nonNilTickers(b.Rule.Tickers))
		if err != nil {
			return fmt.Errorf("failed to marshal tickers for %s: %w", b.ID, err)
		}
		var limit sql.NullString
		if b.ConcentrationLimit != nil {
			limit = sql.NullString{String: b.ConcentrationLimit.String(), Valid: true}
		}

		_, err = tx.Exec(`
			INSERT INTO bucket_configs
				(id, position, target_pct, concentration_limit, rule_kind, rule_tickers,
				 rule_instrument_type, purchase_ticker, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(b.ID), i, b.TargetPct.String(), limit, string(b.Rule.Kind), string(tickers),
			string(b.Rule.InstrumentType), b.PurchaseTicker, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bucket %s: %w", b.ID, err)
		}
	}

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO allocation_settings (key, value) VALUES (?, ?)",
		toleranceKey, table.tolerance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store tolerance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bucket table: %w", err)
	}

	r.log.Info().Int("buckets", len(table.buckets)).Msg("Bucket table saved")
	return nil
}

// SeedDefaults stores table only when no bucket table exists yet.
// Returns true if the table was written.
func (r *Repository) SeedDefaults(table *BucketTable) (bool, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM bucket_configs").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count bucket configs: %w", err)
	}
	if count > 0 {
		r.log.Debug().Int("buckets", count).Msg("Bucket table already present, skipping seed")
		return false, nil
	}
	if err := r.SaveBucketTable(table); err != nil {
		return false, err
	}
	return true, nil
}

func nonNilTickers(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
