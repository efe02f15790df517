// Package sync computes per-user change sets for pull and applies client
// change batches for push.
package sync

// WireRecord is a record as exchanged with clients: identifier under "id"
// and date fields as epoch milliseconds.
type WireRecord map[string]any

// TableChanges holds the three disjoint lists of one table. Deleted holds
// record identifiers.
type TableChanges struct {
	Created []WireRecord `json:"created"`
	Updated []WireRecord `json:"updated"`
	Deleted []string     `json:"deleted"`
}

// Changes maps wire table names to their changes.
type Changes map[string]TableChanges

// PullResponse is the result of a pull. Timestamp is the checkpoint the
// client sends with its next pull.
type PullResponse struct {
	Changes   Changes `json:"changes"`
	Timestamp int64   `json:"timestamp"`
}

// PushRequest is a client change batch.
type PushRequest struct {
	Changes      Changes `json:"changes"`
	LastPulledAt *int64  `json:"lastPulledAt,omitempty"`
}

// Count returns the number of records across every table and list.
func (c Changes) Count() int {
	n := 0
	for _, tc := range c {
		n += len(tc.Created) + len(tc.Updated) + len(tc.Deleted)
	}
	return n
}

func emptyTableChanges() TableChanges {
	return TableChanges{
		Created: []WireRecord{},
		Updated: []WireRecord{},
		Deleted: []string{},
	}
}
