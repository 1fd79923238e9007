package amqp

import (
	"encoding/json"
	"time"

	"finsync/internal/sync"
)

// SyncRequestMessage asks the coordinator to run a cycle for one entity type.
// It carries no payload; the worker fetches everything from the remote source.
type SyncRequestMessage struct {
	Entity    string    `json:"entity"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(entity sync.Entity, reason string) *SyncRequestMessage {
	return &SyncRequestMessage{
		Entity:    string(entity),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncOutcomeMessage is the wire form of a finished cycle's outcome, published
// for downstream consumers such as dashboards or alerting.
type SyncOutcomeMessage struct {
	Entity             string    `json:"entity"`
	State              string    `json:"state"`
	Fallback           bool      `json:"fallback"`
	Fetched            int       `json:"fetched"`
	Converted          int       `json:"converted"`
	ConversionFailures int       `json:"conversion_failures"`
	Created            int       `json:"created"`
	Updated            int       `json:"updated"`
	Error              string    `json:"error,omitempty"`
	DurationMs         int64     `json:"duration_ms"`
	Timestamp          time.Time `json:"timestamp"`
}

func NewSyncOutcomeMessage(oc sync.Outcome) *SyncOutcomeMessage {
	msg := &SyncOutcomeMessage{
		Entity:             string(oc.Entity),
		State:              string(oc.State),
		Fallback:           oc.Fallback,
		Fetched:            oc.Fetched,
		Converted:          oc.Converted,
		ConversionFailures: oc.ConversionFailures,
		Created:            oc.Created,
		Updated:            oc.Updated,
		DurationMs:         oc.Duration.Milliseconds(),
		Timestamp:          time.Now(),
	}
	if oc.Err != nil {
		msg.Error = oc.Err.Error()
	}
	return msg
}

func (m *SyncOutcomeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncOutcomeMessageFromJSON(data []byte) (*SyncOutcomeMessage, error) {
	var msg SyncOutcomeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
