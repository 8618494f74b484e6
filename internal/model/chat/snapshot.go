package chat

// Snapshot is the read-only widget state handed to renderers.
type Snapshot struct {
	Messages []Message `json:"messages"`
	Input    string    `json:"input"`
	// Pending counts sends still waiting for the endpoint.
	Pending int    `json:"pending"`
	Version uint64 `json:"version"`
}

// Awaiting reports whether any send is in flight or queued.
func (s Snapshot) Awaiting() bool {
	return s.Pending > 0
}
