package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Payload carries everything an acquisition worker needs for one cache key.
type Payload struct {
	MediaID      string `json:"media_id"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	FilenameHint string `json:"filename_hint,omitempty"`
}

type EnqueueRequest struct {
	Source   string
	CacheKey string
	Payload  Payload
}

// SyncJob tracks one background acquisition run. Jobs live in memory only;
// correctness rests on artifact presence, not on job state, so a restart
// simply forgets them.
type SyncJob struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CacheKey  string    `json:"cache_key"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
