// Package protocol defines the messages exchanged between two game peers.
//
// Every message is a JSON object with a "type" field and type specific payload:
//
//	{"type":"identify","address":"192.168.1.5"}
//	{"type":"update","position":[[100,100],[100,150]],"direction":[0,-50],"score":3,"running":true}
//	{"type":"extra","food":[200,250],"obstacles":[[50,50],[300,400]]}
//
// Points are encoded as two element arrays. Messages of any other type are decoded
// into [Unknown] and passed through untouched.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is a message discriminant.
type Type string

const (
	// TypeIdentify announces a peer and starts the handshake.
	TypeIdentify Type = "identify"
	// TypeUpdate carries the sender's snake state.
	TypeUpdate Type = "update"
	// TypeExtra carries the food and obstacles layout chosen by the host.
	TypeExtra Type = "extra"
)

// Message is one of [Identify], [Update], [Extra] or [Unknown].
type Message interface {
	Type() Type
	isMessage()
}

// Identify announces a peer and completes the handshake on the receiving side.
type Identify struct {
	Address string `json:"address"`
}

func (Identify) Type() Type { return TypeIdentify }
func (Identify) isMessage() {}

// Update carries the sender's snake state for one simulated tick.
type Update struct {
	Position  []Point `json:"position"`
	Direction Point   `json:"direction"`
	Score     int     `json:"score"`
	// Running is false once the sender's game is over.
	Running bool `json:"running"`
}

func (Update) Type() Type { return TypeUpdate }
func (Update) isMessage() {}

// Extra carries the shared layout of the field. It is sent only when the layout changes.
type Extra struct {
	Food      Point   `json:"food"`
	Obstacles []Point `json:"obstacles"`
}

func (Extra) Type() Type { return TypeExtra }
func (Extra) isMessage() {}

// Unknown is a message of unrecognized type.
// Raw holds the whole undecoded JSON object.
type Unknown struct {
	Kind Type
	Raw  json.RawMessage
}

func (u Unknown) Type() Type { return u.Kind }
func (Unknown) isMessage()   {}

// Point is a 2D integer coordinate.
type Point struct {
	X, Y int
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes the point from [x, y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("point must have 2 coordinates, got %d", len(xy))
	}

	p.X, p.Y = xy[0], xy[1]
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
