package router

import "time"

// Kind classifies a raw stream payload.
type Kind int

const (
	KindData Kind = iota
	KindHeartbeat
)

// Pending is a non-heartbeat payload waiting for the next flush.
type Pending struct {
	Data       []byte
	ReceivedAt time.Time
}

// Stats contains decoder counters.
type Stats struct {
	Received    int64
	Heartbeats  int64
	Decoded     int64
	ParseErrors int64
}

// heartbeatEnvelope is used for fast heartbeat detection.
type heartbeatEnvelope struct {
	Heartbeat bool `json:"heartbeat"`
}
