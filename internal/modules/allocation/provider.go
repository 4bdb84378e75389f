package allocation

// TableProvider supplies the active bucket table.
type TableProvider interface {
	GetBucketTable() (*BucketTable, error)
}

// StaticTableProvider serves a fixed table.
type StaticTableProvider struct {
	Table *BucketTable
}

// GetBucketTable implements TableProvider.
func (p StaticTableProvider) GetBucketTable() (*BucketTable, error) {
	if p.Table == nil {
		return nil, ErrNoBucketTable
	}
	return p.Table, nil
}
