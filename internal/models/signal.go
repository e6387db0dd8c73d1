package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalType identifies a relayed negotiation message.
type SignalType string

const (
	SignalTypeJoin        SignalType = "join"
	SignalTypeOffer       SignalType = "offer"
	SignalTypeAnswer      SignalType = "answer"
	SignalTypeCandidate   SignalType = "ice-candidate"
	SignalTypePoll        SignalType = "poll"
	SignalTypeLeave       SignalType = "leave"
	SignalTypePeerLeft    SignalType = "peer-left"
	SignalTypeAdmitted    SignalType = "admitted"
	SignalTypeRejected    SignalType = "rejected"
	SignalTypeJoinRequest SignalType = "join-request"
)

// Signal is one directed message waiting in a peer's queue. From is empty
// for messages the server itself originates (leave on room end, admitted).
type Signal struct {
	From      string          `json:"from_peer,omitempty"`
	Target    string          `json:"-"`
	Type      SignalType      `json:"signal_type"`
	Data      json.RawMessage `json:"signal_data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// sessionDescription and iceCandidate mirror the browser-side shapes just
// closely enough to validate them. The relay never interprets SDP.
type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceCandidate struct {
	Candidate     *string `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// ValidateSignalData checks that a relayed payload has the shape its type
// promises: offers and answers carry a session description, candidates an
// ICE candidate. Contents beyond shape stay opaque.
func ValidateSignalData(t SignalType, data json.RawMessage, maxBytes int) error {
	if len(data) > maxBytes {
		return fmt.Errorf("signal payload exceeds %d bytes", maxBytes)
	}
	switch t {
	case SignalTypeOffer, SignalTypeAnswer:
		var desc sessionDescription
		if err := json.Unmarshal(data, &desc); err != nil {
			return fmt.Errorf("parse session description: %w", err)
		}
		if desc.SDP == "" {
			return fmt.Errorf("%s payload is missing sdp", t)
		}
		if desc.Type != string(t) {
			return fmt.Errorf("%s payload declares type %q", t, desc.Type)
		}
	case SignalTypeCandidate:
		var cand iceCandidate
		if err := json.Unmarshal(data, &cand); err != nil {
			return fmt.Errorf("parse ice candidate: %w", err)
		}
		// A null candidate field is the browser's end-of-candidates marker
		// and is forwarded as-is.
	default:
		if len(data) != 0 {
			return fmt.Errorf("%s does not carry a payload", t)
		}
	}
	return nil
}
