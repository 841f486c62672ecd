package model

// Alert is produced for every triggered (fence, rule) pair.
// Timestamp is milliseconds since the Unix epoch.
type Alert struct {
	Type      Action `json:"type"`
	Message   string `json:"message"`
	ActorID   string `json:"actorId"`
	SessionID string `json:"sessionId"`
	FenceID   string `json:"fenceId"`
	FenceName string `json:"fenceName"`
	Timestamp int64  `json:"timestamp"`
}
