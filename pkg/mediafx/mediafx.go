// Package mediafx specifies the minimal surface this project needs from an
// underlying media framework (element graphs, property setters, a bus of
// asynchronous messages). It is deliberately interfaces-only: the actual
// media framework (capture, encode, payload) is an external collaborator of
// this project, not something it implements or binds to directly. Callers
// inject a concrete ElementFactory/Pipeline implementation; pkg/mediafx/fake
// provides an in-memory one used throughout this module's own tests.
package mediafx

import (
	"fmt"
	"time"
)

// Caps describes a negotiated media format, e.g. video/x-raw with width,
// height and framerate fields, or video/x-h264 with a profile field.
type Caps struct {
	MimeType string
	Fields   map[string]string
}

// String renders caps the way a pipeline description string would.
func (c Caps) String() string {
	s := c.MimeType
	for k, v := range c.Fields {
		s += fmt.Sprintf(",%s=%s", k, v)
	}
	return s
}

// Element is one node in a media pipeline graph: a source, a converter, an
// encoder, a payloader, or a sink.
type Element interface {
	Name() string
	SetProperty(name string, value any) error
	Property(name string) (any, bool)
	Link(next Element) error
}

// ElementFactory constructs named elements, the way an application would ask
// the framework for "x264enc" or "ximagesrc". A missing factory (the plugin
// isn't installed) is the construction-error case callers must surface as
// fatal.
type ElementFactory interface {
	Make(factoryName, elementName string) (Element, error)
}

// MessageKind enumerates the bus message types this project's bus handler
// reacts to.
type MessageKind int

const (
	MsgEOS MessageKind = iota
	MsgError
	MsgStateChanged
	MsgLatency
)

// Message is one asynchronous notification read off a Pipeline's Bus.
type Message struct {
	Kind       MessageKind
	Source     string
	Err        error
	OldState   PipelineState
	NewState   PipelineState
}

// Bus is a pollable queue of pipeline messages.
type Bus interface {
	// Pop waits up to timeout for the next message. ok is false on
	// timeout with no message available.
	Pop(timeout time.Duration) (Message, bool)
}

// PipelineState mirrors the coarse states a media pipeline moves through.
type PipelineState int

const (
	StateNull PipelineState = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s PipelineState) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// Pipeline is a constructed graph of linked Elements with a bus of
// asynchronous state/error messages.
type Pipeline interface {
	Add(e Element) error
	Elements() []Element
	SetState(s PipelineState) error
	State() PipelineState
	Bus() Bus
}
