package allocation

import "github.com/investbot/balancer/internal/domain"

// Classifier assigns holdings to buckets. Ticker rules always win over
// instrument-type rules; within a rule kind the first bucket in table order wins.
type Classifier struct {
	byTicker map[string]BucketID
	byType   map[domain.InstrumentType]BucketID
}

// NewClassifier builds lookup tables from the bucket table.
func NewClassifier(table *BucketTable) *Classifier {
	c := &Classifier{
		byTicker: make(map[string]BucketID),
		byType:   make(map[domain.InstrumentType]BucketID),
	}

	for _, kind := range rulePriority {
		for _, b := range table.buckets {
			if b.Rule.Kind != kind {
				continue
			}
			if kind == RuleInstrumentType {
				if _, seen := c.byType[b.Rule.InstrumentType]; !seen {
					c.byType[b.Rule.InstrumentType] = b.ID
				}
				continue
			}
			for _, ticker := range b.Rule.Tickers {
				if _, seen := c.byTicker[ticker]; !seen {
					c.byTicker[ticker] = b.ID
				}
			}
		}
	}

	return c
}

// Classify returns the holding's bucket, or Unclassified.
func (c *Classifier) Classify(h domain.Holding) BucketID {
	if id, ok := c.byTicker[h.Ticker]; ok {
		return id
	}
	if id, ok := c.byType[h.Type]; ok {
		return id
	}
	return Unclassified
}
