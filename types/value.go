package types

import (
	"fmt"
	"strconv"
)

type (
	ValueKind uint8

	/*
	Value is a tagged scalar carried by proposals and replicated state.
	It is comparable so it can be used directly as a map key when tallying votes.
	*/
	Value struct {
		Kind ValueKind `json:"kind"`
		Str  string    `json:"str,omitempty"`
		Num  float64   `json:"num,omitempty"`
		Bool bool      `json:"bool,omitempty"`
	}

	// StateEntry is a last-writer-wins register value.
	StateEntry struct {
		Value     Value  `json:"value"`
		Timestamp uint64 `json:"timestamp"`
	}

	// LocalState is one node's local view of the replicated state.
	LocalState struct {
		NodeID  string                `json:"nodeId"`
		Entries map[string]StateEntry `json:"entries"`
	}

	// ReplicatedState is the merged view, key to winning entry.
	ReplicatedState map[string]StateEntry
)

const (
	KindNone ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func (v Value) IsZero() bool {
	return v.Kind == KindNone
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNone:
		return "<none>"
	default:
		return fmt.Sprintf("value_kind(%d)", uint8(v.Kind))
	}
}

func (k ValueKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("value_kind(%d)", uint8(k))
	}
}

func NewLocalState(nodeID string) *LocalState {
	return &LocalState{NodeID: nodeID, Entries: make(map[string]StateEntry)}
}

// Set stores value under key with the given timestamp, returns the receiver for chaining.
func (s *LocalState) Set(key string, v Value, ts uint64) *LocalState {
	if s.Entries == nil {
		s.Entries = make(map[string]StateEntry)
	}
	s.Entries[key] = StateEntry{Value: v, Timestamp: ts}
	return s
}
