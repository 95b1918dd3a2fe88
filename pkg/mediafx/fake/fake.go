// Package fake is an in-memory mediafx implementation: an element graph
// held as a slice and a bus backed by a buffered channel. It lets
// pkg/pipeline and pkg/bus be unit-tested without a real media framework.
package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
)

// Element is a fake mediafx.Element backed by a plain property map.
type Element struct {
	name       string
	mu         sync.RWMutex
	properties map[string]any
	linkedTo   []string

	// FailLink, when set, makes Link return this error instead of
	// succeeding — used to exercise construction-error paths.
	FailLink error
}

// NewElement constructs a fake element with the given name.
func NewElement(name string) *Element {
	return &Element{name: name, properties: make(map[string]any)}
}

func (e *Element) Name() string { return e.name }

func (e *Element) SetProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.properties[name] = value
	return nil
}

func (e *Element) Property(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.properties[name]
	return v, ok
}

func (e *Element) Link(next mediafx.Element) error {
	if e.FailLink != nil {
		return e.FailLink
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.linkedTo = append(e.linkedTo, next.Name())
	return nil
}

// LinkedTo returns the names of elements this element has been linked to,
// in link order.
func (e *Element) LinkedTo() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.linkedTo))
	copy(out, e.linkedTo)
	return out
}

// Factory is a fake mediafx.ElementFactory. Missing registers a set of
// factory names that should fail to construct, modeling an uninstalled
// plugin.
type Factory struct {
	Missing map[string]bool
}

// NewFactory builds a Factory, optionally marking some factory names as
// unavailable.
func NewFactory(missing ...string) *Factory {
	f := &Factory{Missing: make(map[string]bool)}
	for _, m := range missing {
		f.Missing[m] = true
	}
	return f
}

func (f *Factory) Make(factoryName, elementName string) (mediafx.Element, error) {
	if f.Missing[factoryName] {
		return nil, fmt.Errorf("element factory %q not available", factoryName)
	}
	return NewElement(elementName), nil
}

// Bus is a fake mediafx.Bus backed by a buffered channel.
type Bus struct {
	messages chan mediafx.Message
}

// NewBus creates a Bus with the given buffer depth.
func NewBus(depth int) *Bus {
	return &Bus{messages: make(chan mediafx.Message, depth)}
}

// Post enqueues a message for the next Pop call.
func (b *Bus) Post(msg mediafx.Message) {
	b.messages <- msg
}

func (b *Bus) Pop(timeout time.Duration) (mediafx.Message, bool) {
	select {
	case msg := <-b.messages:
		return msg, true
	default:
	}
	select {
	case msg := <-b.messages:
		return msg, true
	case <-time.After(timeout):
		return mediafx.Message{}, false
	}
}

// Pipeline is a fake mediafx.Pipeline: an ordered element list plus a Bus.
type Pipeline struct {
	mu       sync.Mutex
	elements []mediafx.Element
	state    mediafx.PipelineState
	bus      *Bus
}

// NewPipeline creates an empty fake pipeline in the NULL state.
func NewPipeline() *Pipeline {
	return &Pipeline{bus: NewBus(16), state: mediafx.StateNull}
}

func (p *Pipeline) Add(e mediafx.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, e)
	return nil
}

func (p *Pipeline) Elements() []mediafx.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]mediafx.Element, len(p.elements))
	copy(out, p.elements)
	return out
}

func (p *Pipeline) SetState(s mediafx.PipelineState) error {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()
	if old != s {
		p.bus.Post(mediafx.Message{Kind: mediafx.MsgStateChanged, OldState: old, NewState: s})
	}
	return nil
}

func (p *Pipeline) State() mediafx.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Bus() mediafx.Bus { return p.bus }

// FakeBus exposes the concrete Bus for tests that want to post messages
// directly (EOS, Error) without going through SetState.
func (p *Pipeline) FakeBus() *Bus { return p.bus }
