package events

// EventData is implemented by typed event payloads
type EventData interface {
	EventType() EventType
}

// BucketDeviation is one bucket outside its tolerance band
type BucketDeviation struct {
	Bucket    string `json:"bucket"`
	ActualPct string `json:"actual_pct"`
	TargetPct string `json:"target_pct"`
}

// ConcentrationBreach is one holding above its bucket's limit
type ConcentrationBreach struct {
	Bucket    string `json:"bucket"`
	Ticker    string `json:"ticker"`
	ActualPct string `json:"actual_pct"`
	LimitPct  string `json:"limit_pct"`
}

// DeviationsDetectedData contains data for DeviationsDetected events
type DeviationsDetectedData struct {
	TotalValue            string                `json:"total_value"`
	Deviations            []BucketDeviation     `json:"deviations"`
	ConcentrationProblems []ConcentrationBreach `json:"concentration_problems"`
}

// EventType returns the event type for DeviationsDetectedData
func (d *DeviationsDetectedData) EventType() EventType {
	return DeviationsDetected
}

// RebalancePlanCreatedData contains data for RebalancePlanCreated events
type RebalancePlanCreatedData struct {
	Sells                 int    `json:"sells"`
	Buys                  int    `json:"buys"`
	TotalCashFromSales    string `json:"total_cash_from_sales"`
	TotalCashForPurchases string `json:"total_cash_for_purchases"`
}

// EventType returns the event type for RebalancePlanCreatedData
func (d *RebalancePlanCreatedData) EventType() EventType {
	return RebalancePlanCreated
}

// ErrorData contains data for ErrorOccurred events
type ErrorData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorData
func (d *ErrorData) EventType() EventType {
	return ErrorOccurred
}
