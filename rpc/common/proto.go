package common

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/lib/source"
	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Target   string            `json:"target,omitempty"`   // Used for: Match, DeviceID
	Stage    string            `json:"stage,omitempty"`    // Used for: Match (single stage, empty = cascade)
	Headers  map[string]string `json:"headers,omitempty"`  // Used for: MatchHeaders
	Property string            `json:"property,omitempty"` // Used for: Profiles
	Value    string            `json:"value,omitempty"`    // Used for: Profiles

	// Response only fields
	Payload []byte `json:"payload,omitempty"` // JSON encoded MatchResult, []ProfileInfo or CatalogInfo
	Ok      bool   `json:"ok,omitempty"`      // Used for: Match, MatchHeaders, DeviceID responses (false = no match)
	Err     string `json:"err,omitempty"`     // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewMatchRequest creates a new Match request. An empty stage runs the whole cascade.
func NewMatchRequest(target string, stage match.Stage) *Message {
	msg := &Message{
		MsgType: MsgTMatch,
		Target:  target,
	}
	if stage != match.StageNone {
		msg.Stage = stage.String()
	}
	return msg
}

// NewMatchHeadersRequest creates a new MatchHeaders request
func NewMatchHeadersRequest(headers map[string]string) *Message {
	return &Message{
		MsgType: MsgTMatchHeaders,
		Headers: headers,
	}
}

// NewDeviceIDRequest creates a new DeviceID request
func NewDeviceIDRequest(id string) *Message {
	return &Message{
		MsgType: MsgTDeviceID,
		Target:  id,
	}
}

// NewMatchResponse creates the response of all match requests
func NewMatchResponse(msgType MessageType, result *MatchResult, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	if err == nil && result != nil {
		msg.Ok = result.Method != match.MethodNone
		msg.Payload, err = json.Marshal(result)
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewProfilesRequest creates a new Profiles request
func NewProfilesRequest(property, value string) *Message {
	return &Message{
		MsgType:  MsgTProfiles,
		Property: property,
		Value:    value,
	}
}

// NewProfilesResponse creates a new Profiles response
func NewProfilesResponse(profiles []ProfileInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTProfiles,
	}
	if err == nil {
		msg.Payload, err = json.Marshal(profiles)
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(info *CatalogInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err == nil {
		msg.Payload, err = json.Marshal(info)
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Payloads
// --------------------------------------------------------------------------

// MatchResult is the wire form of a match.Result. Profiles are identified by their
// ids, Properties maps property names to the value names of the matched profiles.
type MatchResult struct {
	Target             string              `json:"target"`
	Targets            map[string]string   `json:"targets,omitempty"`
	Signature          string              `json:"signature,omitempty"`
	SignatureIndex     int                 `json:"signature_index"` // -1 if there is no signature
	DeviceID           string              `json:"device_id,omitempty"`
	ProfileIDs         []int               `json:"profile_ids"`
	Method             match.Method        `json:"method"`
	Stage              match.Stage         `json:"stage"`
	Difference         int                 `json:"difference"`
	SignaturesCompared int                 `json:"signatures_compared"`
	Properties         map[string][]string `json:"properties,omitempty"`
}

// ProfileInfo describes one profile of a profile search
type ProfileInfo struct {
	ID        int    `json:"id"`
	Component string `json:"component"`
	Rank      int    `json:"rank"`
}

// CatalogInfo describes a served catalog and the state of its caches
type CatalogInfo struct {
	Name       string                       `json:"name"`
	Version    uint16                       `json:"version"`
	Published  time.Time                    `json:"published"`
	Mode       string                       `json:"mode"`
	Signatures int                          `json:"signatures"`
	Profiles   int                          `json:"profiles"`
	Values     int                          `json:"values"`
	Headers    []string                     `json:"headers"`
	Components []string                     `json:"components"`
	Caches     map[cache.Entity]cache.Stats `json:"caches"`
	Pool       source.PoolStats             `json:"pool"`
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTMatch:
		return "match"
	case MsgTMatchHeaders:
		return "matchHeaders"
	case MsgTDeviceID:
		return "deviceId"
	case MsgTProfiles:
		return "profiles"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "match":
		*t = MsgTMatch
	case "matchHeaders":
		*t = MsgTMatchHeaders
	case "deviceId":
		*t = MsgTDeviceID
	case "profiles":
		*t = MsgTProfiles
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Matching

	MsgTMatch        // Match a target string
	MsgTMatchHeaders // Match a set of request headers
	MsgTDeviceID     // Resolve a device id

	// Metadata

	MsgTProfiles // Profiles carrying a property value
	MsgTInfo     // Catalog metadata and cache statistics
)
