package contracts

import (
	"encoding/json"

	"stoplight/internal/domain/geo"
)

// InboundKind discriminates the messages a simulator session may send.
type InboundKind int

const (
	// InboundInvalid covers unparseable frames, unknown types, and position frames
	// with missing or non-numeric fields. Sessions drop these silently.
	InboundInvalid InboundKind = iota
	InboundPosition
	InboundEndSimulation
)

// Inbound is the decoded, tagged form of one simulator frame.
type Inbound struct {
	Kind     InboundKind
	Position geo.Coordinate // set only for InboundPosition
}

// Wire types. The canonical position shape is nested:
//
//	{"type":"position","data":{"coordinates":{"lat":40.0,"lng":-75.0}}}
//	{"type":"end_simulation"}
//
// lat/lng are decoded through pointers so an absent field is distinguishable from 0.
type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type positionData struct {
	Coordinates struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"coordinates"`
}

// DecodeInbound parses one frame into its tagged variant. It never returns an error:
// per the session contract every malformed input collapses to InboundInvalid.
func DecodeInbound(payload []byte) Inbound {
	var env inboundEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Inbound{Kind: InboundInvalid}
	}

	switch env.Type {
	case "end_simulation":
		return Inbound{Kind: InboundEndSimulation}

	case "position":
		var pd positionData
		if err := json.Unmarshal(env.Data, &pd); err != nil {
			return Inbound{Kind: InboundInvalid}
		}
		if pd.Coordinates.Lat == nil || pd.Coordinates.Lng == nil {
			return Inbound{Kind: InboundInvalid}
		}
		position, err := geo.NewCoordinate(*pd.Coordinates.Lat, *pd.Coordinates.Lng)
		if err != nil {
			return Inbound{Kind: InboundInvalid}
		}
		return Inbound{Kind: InboundPosition, Position: position}

	default:
		return Inbound{Kind: InboundInvalid}
	}
}
