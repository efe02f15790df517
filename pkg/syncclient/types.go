package syncclient

// Record is a row in wire form: "id" carries the primary key and date
// fields are integer milliseconds since the Unix epoch.
type Record map[string]any

// TableChanges groups the changes for one table.
type TableChanges struct {
	Created []Record `json:"created"`
	Updated []Record `json:"updated"`
	Deleted []string `json:"deleted"`
}

// Changes maps wire table names to their changes.
type Changes map[string]TableChanges

// Count returns the number of created, updated and deleted entries.
func (c Changes) Count() int {
	n := 0
	for _, tc := range c {
		n += len(tc.Created) + len(tc.Updated) + len(tc.Deleted)
	}
	return n
}

// PullResponse is the body returned by the pull endpoint. Timestamp is the
// checkpoint to send as lastPulledAt on the next pull.
type PullResponse struct {
	Changes   Changes `json:"changes"`
	Timestamp int64   `json:"timestamp"`
}

// PushRequest is the body accepted by the push endpoint.
type PushRequest struct {
	Changes      Changes `json:"changes"`
	LastPulledAt *int64  `json:"lastPulledAt,omitempty"`
}

// Rejection describes one record the server refused.
type Rejection struct {
	Table     string `json:"table"`
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}
