// Package model holds the message types shared by the dispatch path and the
// session client.
package model

import "fmt"

// Kind is the type of an outbound message.
type Kind string

const (
	KindText     Kind = "chat"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// AckState is the delivery progress of a sent message. Values above
// AckPending are ordered; AckFailed is terminal.
type AckState int

const (
	AckFailed    AckState = -1
	AckPending   AckState = 0
	AckServer    AckState = 1
	AckDelivered AckState = 2
	AckRead      AckState = 3
	AckPlayed    AckState = 4
)

func (a AckState) String() string {
	switch a {
	case AckFailed:
		return "failed"
	case AckPending:
		return "pending"
	case AckServer:
		return "server"
	case AckDelivered:
		return "delivered"
	case AckRead:
		return "read"
	case AckPlayed:
		return "played"
	default:
		return fmt.Sprintf("ack(%d)", int(a))
	}
}

// Media is the binary payload of an image or document message.
type Media struct {
	MimeType string
	Data     []byte
	Filename string
	Caption  string
}

// Content is what gets handed to the session client for delivery.
// Text is set for KindText, Media for the other kinds.
type Content struct {
	Kind  Kind
	Text  string
	Media *Media
}
