package query

import "time"

// PolicyResponse is the projected view of one insurance record.
// AsOfSequence tells the caller how fresh the projection was.
type PolicyResponse struct {
	Owner              string     `json:"owner"`
	ProtocolName       string     `json:"protocol_name"`
	ProtocolWebsite    string     `json:"protocol_website"`
	ContactInformation string     `json:"contact_information"`
	Asset              string     `json:"asset"`
	Amount             int64      `json:"amount"`
	YearlyPrice        int64      `json:"yearly_price"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	Status             string     `json:"status"`
	AsOfSequence       int64      `json:"as_of_sequence"`
}

// PoolResponse is the projected per-asset liquidity view
type PoolResponse struct {
	Asset         string `json:"asset"`
	Available     int64  `json:"available"`
	Reserved      int64  `json:"reserved"`
	CollectedFees int64  `json:"collected_fees"`
	AsOfSequence  int64  `json:"as_of_sequence"`
}

// EventResponse is one logged transition
type EventResponse struct {
	Sequence  int64     `json:"sequence"`
	EventType string    `json:"event_type"`
	Owner     *string   `json:"owner,omitempty"`
	Asset     *string   `json:"asset,omitempty"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
