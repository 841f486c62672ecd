package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Real-time event names.
const (
	eventJoin           = "join"
	eventLeave          = "leave"
	eventLocationUpdate = "locationUpdate"
	eventChatMessage    = "chatMessage"
	eventRosterSnapshot = "rosterSnapshot"
	eventMemberJoined   = "memberJoined"
	eventMemberLeft     = "memberLeft"
	eventConnected      = "connected"
)

// maxChatLength caps a single chat message, in bytes.
const maxChatLength = 4096

// inboundFrame is the envelope every client frame arrives in.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinMessage struct {
	SessionID string `json:"sessionId"`
	ActorName string `json:"actorName"`
}

type leaveMessage struct {
	SessionID string `json:"sessionId"`
}

type locationMessage struct {
	SessionID string          `json:"sessionId"`
	Location  *model.Location `json:"location"`
	ActorName string          `json:"actorName"`
}

type chatMessage struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Outbound payloads.

// connectedPayload tells a freshly connected client its actor ID.
type connectedPayload struct {
	ActorID string `json:"actorId"`
}

type memberJoinedPayload struct {
	ActorID string `json:"actorId"`
	Name    string `json:"name"`
}

type memberLeftPayload struct {
	ActorID   string `json:"actorId"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

type locationPayload struct {
	ActorID  string         `json:"actorId"`
	Location model.Location `json:"location"`
	Name     string         `json:"name"`
}

type chatPayload struct {
	ActorID   string `json:"actorId"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

var errEmptyFrame = errors.New("frame has no data")

// decodeFrame parses one client frame into a typed message. Unknown event
// names and missing required fields are errors.
func decodeFrame(raw []byte) (any, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil, fmt.Errorf("%s: %w", f.Event, errEmptyFrame)
	}

	switch f.Event {
	case eventJoin:
		var m joinMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("decode join: %w", err)
		}
		m.ActorName = strings.TrimSpace(m.ActorName)
		if m.SessionID == "" || m.ActorName == "" {
			return nil, errors.New("join: sessionId and actorName are required")
		}
		return m, nil

	case eventLeave:
		var m leaveMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("decode leave: %w", err)
		}
		if m.SessionID == "" {
			return nil, errors.New("leave: sessionId is required")
		}
		return m, nil

	case eventLocationUpdate:
		var m locationMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("decode locationUpdate: %w", err)
		}
		if m.SessionID == "" || m.Location == nil {
			return nil, errors.New("locationUpdate: sessionId and location are required")
		}
		if !validCoordinate(m.Location.Lat, 90) || !validCoordinate(m.Location.Lng, 180) {
			return nil, fmt.Errorf("locationUpdate: coordinates out of range (%v, %v)", m.Location.Lat, m.Location.Lng)
		}
		return m, nil

	case eventChatMessage:
		var m chatMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("decode chatMessage: %w", err)
		}
		if m.SessionID == "" || m.Message == "" {
			return nil, errors.New("chatMessage: sessionId and message are required")
		}
		if len(m.Message) > maxChatLength {
			return nil, fmt.Errorf("chatMessage: message exceeds %d bytes", maxChatLength)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown event %q", f.Event)
	}
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
