package ir

// TxStats counts what one propagation transaction did.
type TxStats struct {
	Events        int `json:"events"`
	Marks         int `json:"marks"`
	DroppedDepth  int `json:"dropped_depth"`
	SkippedCycles int `json:"skipped_cycles"`
	SkippedStale  int `json:"skipped_stale"`
}

// TxRecord is the audit row written when a transaction commits.
type TxRecord struct {
	ID          string  `json:"id"`
	ChannelID   int64   `json:"channel_id"`
	UserID      int64   `json:"user_id"`
	Interrupted bool    `json:"interrupted"`
	Stats       TxStats `json:"stats"`
}
