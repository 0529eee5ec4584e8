// Package sim implements the document engine surface in-process. It is the
// default backend for development setups without reader hardware and the
// test double for the read orchestration.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
)

// Script describes the behaviour of the simulated hardware for one scenario.
type Script struct {
	// Devices the simulator pretends are attached.
	Devices []string
	// OpenErr, when set, fails every OpenDevice call.
	OpenErr error
	// CardPresent controls whether the card reader reports a chip.
	CardPresent bool
	// ConnectErr, when set, fails CardReader.Connect.
	ConnectErr error
	// ScanErr, when set, fails page capture.
	ScanErr error

	// Optical holds the fields produced by analyzing a scanned page.
	Optical map[engine.FieldRef]engine.Value
	// Files holds the fields of each chip data group, keyed by file ID.
	Files map[engine.ChipFileID]map[engine.FieldRef]engine.Value

	// AuthOK is the outcome reported by the auth-finished event.
	AuthOK bool
	// RejectAuthKey makes ProvideAuthKey return an error.
	RejectAuthKey bool
	// FailFiles marks file groups whose read-finished event reports failure.
	FailFiles map[engine.ChipFileID]bool

	// EventDelay is inserted before each chip event.
	EventDelay time.Duration
	// Hang stops the task from ever publishing a terminal event, so the
	// caller's deadline has to fire.
	Hang bool
}

// Engine is the simulated vendor engine.
type Engine struct {
	bus    *engine.Bus
	logger *logging.Logger

	mu          sync.Mutex
	script      Script
	lastCard    *card
	lastAuthKey engine.AuthKey
	authKeySet  bool
}

// New creates a simulator driven by the given script.
func New(script Script, logger *logging.Logger) *Engine {
	return &Engine{
		bus:    engine.NewBus(),
		logger: logger,
		script: script,
	}
}

// SetScript swaps the scenario; running tasks keep the script they started with.
func (e *Engine) SetScript(script Script) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = script
}

func (e *Engine) snapshot() Script {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.script
}

func (e *Engine) Bus() *engine.Bus {
	return e.bus
}

// SimulateConnectionChange publishes a device connection event, as the vendor
// SDK does when the reader is unplugged or replugged.
func (e *Engine) SimulateConnectionChange(name string, connected bool) {
	e.bus.Publish(engine.TopicConnectionChanged, engine.ConnectionEvent{
		DeviceName: name,
		Connected:  connected,
	})
}

func (e *Engine) ListDevices() ([]string, error) {
	s := e.snapshot()
	return append([]string(nil), s.Devices...), nil
}

func (e *Engine) OpenDevice(name string) (engine.Device, error) {
	s := e.snapshot()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	for _, dev := range s.Devices {
		if dev == name {
			return &device{name: name}, nil
		}
	}
	return nil, engine.ErrDeviceNotFound
}

func (e *Engine) ListReaders() ([]engine.CardReader, error) {
	s := e.snapshot()
	return []engine.CardReader{
		&cardReader{engine: e, name: "sim-reader-0", present: s.CardPresent, connectErr: s.ConnectErr},
	}, nil
}

// LastAuthKey returns the most recent auth key handed to a chip task and
// whether one was supplied at all.
func (e *Engine) LastAuthKey() (engine.AuthKey, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAuthKey, e.authKeySet
}

func (e *Engine) recordAuthKey(key engine.AuthKey) {
	e.mu.Lock()
	e.lastAuthKey = key
	e.authKeySet = true
	e.mu.Unlock()
}

// LastCardDisconnected reports whether the most recently connected card has
// been released. False when no card was ever connected.
func (e *Engine) LastCardDisconnected() bool {
	e.mu.Lock()
	c := e.lastCard
	e.mu.Unlock()
	if c == nil {
		return false
	}
	return c.Disconnected()
}

func (e *Engine) Scan(_ context.Context, _ engine.Device, _ []engine.Light) (engine.Page, error) {
	s := e.snapshot()
	if s.ScanErr != nil {
		return nil, s.ScanErr
	}
	return &page{id: uuid.New().String()}, nil
}

func (e *Engine) Analyze(_ context.Context, input engine.AnalyzeInput, fields []engine.FieldRef) (engine.Document, error) {
	s := e.snapshot()

	if input.Page != nil {
		return filterDocument(s.Optical, fields), nil
	}

	// Chip file payloads round-trip as the file ID.
	group, ok := s.Files[engine.ChipFileID(input.Data)]
	if !ok {
		return nil, engine.ErrNoCard
	}
	return NewDocument(group), nil
}

func (e *Engine) StartChipRead(card engine.Card, req engine.ChipRead) (engine.ChipTask, error) {
	if card == nil {
		return nil, engine.ErrNoCard
	}

	task := &chipTask{
		engine: e,
		script: e.snapshot(),
		req:    req,
		keyCh:  make(chan engine.AuthKey, 1),
		stopCh: make(chan struct{}),
	}
	go task.run()
	return task, nil
}

type device struct {
	name string
}

func (d *device) Name() string { return d.name }
func (d *device) Close() error { return nil }

type page struct {
	id string
}

func (p *page) ID() string { return p.id }

type cardReader struct {
	engine     *Engine
	name       string
	present    bool
	connectErr error
}

func (r *cardReader) Name() string      { return r.name }
func (r *cardReader) CardPresent() bool { return r.present }

func (r *cardReader) Connect() (engine.Card, error) {
	if r.connectErr != nil {
		return nil, r.connectErr
	}
	if !r.present {
		return nil, engine.ErrNoCard
	}
	c := &card{}
	r.engine.mu.Lock()
	r.engine.lastCard = c
	r.engine.mu.Unlock()
	return c, nil
}

type card struct {
	mu           sync.Mutex
	disconnected bool
}

func (c *card) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

// Disconnected reports whether Disconnect has been called; used by tests to
// assert the cleanup stage ran.
func (c *card) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Document is a static field map satisfying engine.Document.
type Document struct {
	fields map[engine.FieldRef]engine.Value
}

// NewDocument builds a document over a field map.
func NewDocument(fields map[engine.FieldRef]engine.Value) *Document {
	return &Document{fields: fields}
}

func (d *Document) Field(src engine.Source, id engine.FieldID) (engine.Value, bool) {
	v, ok := d.fields[engine.FieldRef{Source: src, ID: id}]
	return v, ok
}

func filterDocument(all map[engine.FieldRef]engine.Value, fields []engine.FieldRef) *Document {
	out := make(map[engine.FieldRef]engine.Value, len(fields))
	for _, ref := range fields {
		if v, ok := all[ref]; ok {
			out[ref] = v
		}
	}
	return NewDocument(out)
}

type chipTask struct {
	engine *Engine
	script Script
	req    engine.ChipRead

	keyCh    chan engine.AuthKey
	stopOnce sync.Once
	stopCh   chan struct{}
}

func (t *chipTask) ProvideAuthKey(key engine.AuthKey) error {
	t.engine.recordAuthKey(key)
	if t.script.RejectAuthKey {
		return errors.New("auth key rejected")
	}
	select {
	case t.keyCh <- key:
	default:
	}
	return nil
}

func (t *chipTask) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *chipTask) pause() bool {
	if t.script.EventDelay <= 0 {
		select {
		case <-t.stopCh:
			return false
		default:
			return true
		}
	}
	select {
	case <-time.After(t.script.EventDelay):
		return true
	case <-t.stopCh:
		return false
	}
}

// run replays the vendor event sequence: auth handshake first, then one
// checked/finished pair per requested file group.
func (t *chipTask) run() {
	bus := t.engine.Bus()
	sid := t.req.SessionID

	if !t.pause() {
		return
	}
	bus.Publish(engine.TopicAuthBegin, engine.AuthEvent{SessionID: sid, OK: true})
	bus.Publish(engine.TopicAuthWaitInput, engine.AuthEvent{SessionID: sid, OK: true})

	select {
	case <-t.keyCh:
	case <-time.After(2 * time.Second):
	case <-t.stopCh:
		return
	}

	bus.Publish(engine.TopicAuthFinished, engine.AuthEvent{
		SessionID: sid,
		OK:        t.script.AuthOK,
	})

	if t.script.Hang {
		<-t.stopCh
		return
	}

	for _, file := range t.req.Files {
		if !t.pause() {
			return
		}
		bus.Publish(engine.TopicReadBegin, engine.FileEvent{SessionID: sid, File: file})
		bus.Publish(engine.TopicFileChecked, engine.FileEvent{SessionID: sid, File: file})

		ev := engine.ReadFinishedEvent{SessionID: sid, File: file, OK: true}
		if t.script.FailFiles[file] {
			ev.OK = false
			ev.Detail = "file read failed"
		} else {
			ev.Data = []byte(file)
		}
		bus.Publish(engine.TopicReadFinished, ev)
	}
}
