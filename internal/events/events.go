// Package events defines the emergency lifecycle events published to the
// emergency.changed topic and their protobuf wire encoding.
package events

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SchemaVersion is bumped when EmergencyChanged gains or loses fields.
const SchemaVersion = 1

// Valid actions for EmergencyChanged
const (
	ActionTriggered = "TRIGGERED"
	ActionUpdated   = "UPDATED"
	ActionResolved  = "RESOLVED"
)

// EmergencyChanged is published whenever an emergency is triggered,
// receives a status update or is resolved.
type EmergencyChanged struct {
	EmergencyID   string    `json:"emergency_id"`
	Action        string    `json:"action"`
	ScopeType     string    `json:"scope_type"`
	Branch        string    `json:"branch,omitempty"`
	Section       string    `json:"section,omitempty"`
	Message       string    `json:"message"`
	UpdateID      string    `json:"update_id,omitempty"`
	Targeted      int       `json:"targeted"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	OccurredAt    time.Time `json:"occurred_at"`
	SchemaVersion int       `json:"schema_version"`
}

// ValidAction reports whether action is one of the lifecycle actions.
func ValidAction(action string) bool {
	switch action {
	case ActionTriggered, ActionUpdated, ActionResolved:
		return true
	default:
		return false
	}
}

// Encode serializes the event as a protobuf Struct. The timestamp travels
// separately, see EncodeTime.
func (e *EmergencyChanged) Encode() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"emergency_id":   e.EmergencyID,
		"action":         e.Action,
		"scope_type":     e.ScopeType,
		"branch":         e.Branch,
		"section":        e.Section,
		"message":        e.Message,
		"update_id":      e.UpdateID,
		"targeted":       e.Targeted,
		"sent":           e.Sent,
		"failed":         e.Failed,
		"schema_version": e.SchemaVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}
	return proto.Marshal(s)
}

// EncodeTime serializes t as a protobuf Timestamp.
func EncodeTime(t time.Time) ([]byte, error) {
	return proto.Marshal(timestamppb.New(t))
}

// Decode parses an event encoded by Encode. ts may be nil, in which case
// OccurredAt is left zero.
func Decode(value, ts []byte) (*EmergencyChanged, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	f := s.GetFields()
	e := &EmergencyChanged{
		EmergencyID:   f["emergency_id"].GetStringValue(),
		Action:        f["action"].GetStringValue(),
		ScopeType:     f["scope_type"].GetStringValue(),
		Branch:        f["branch"].GetStringValue(),
		Section:       f["section"].GetStringValue(),
		Message:       f["message"].GetStringValue(),
		UpdateID:      f["update_id"].GetStringValue(),
		Targeted:      int(f["targeted"].GetNumberValue()),
		Sent:          int(f["sent"].GetNumberValue()),
		Failed:        int(f["failed"].GetNumberValue()),
		SchemaVersion: int(f["schema_version"].GetNumberValue()),
	}

	if len(ts) > 0 {
		var pbts timestamppb.Timestamp
		if err := proto.Unmarshal(ts, &pbts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timestamp: %w", err)
		}
		e.OccurredAt = pbts.AsTime()
	}
	return e, nil
}
