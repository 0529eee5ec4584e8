package reader

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/image"
	errs "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/observability"
)

const defaultReadTimeout = 25 * time.Second

// Options configures a Coordinator.
type Options struct {
	Engine  engine.Engine
	Gateway *Gateway
	Logger  *logging.Logger

	// Photo validates merged face images; nil skips validation.
	Photo *image.Validator

	// Timeout is the default per-read deadline when the caller passes none.
	Timeout time.Duration

	AuthLevel    engine.AuthLevel
	IncludePhoto bool
}

// Coordinator drives the single-flight read lifecycle. At most one read
// cycle runs at a time; concurrent callers are rejected immediately, never
// queued.
type Coordinator struct {
	engine  engine.Engine
	gateway *Gateway
	logger  *logging.Logger
	photo   *image.Validator

	gate         *semaphore.Weighted
	timeout      time.Duration
	authLevel    engine.AuthLevel
	includePhoto bool
}

// NewCoordinator builds a coordinator over an open gateway.
func NewCoordinator(opts Options) *Coordinator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &Coordinator{
		engine:       opts.Engine,
		gateway:      opts.Gateway,
		logger:       opts.Logger,
		photo:        opts.Photo,
		gate:         semaphore.NewWeighted(1),
		timeout:      timeout,
		authLevel:    opts.AuthLevel,
		includePhoto: opts.IncludePhoto,
	}
}

// Read runs one full read cycle and blocks until it resolves or the deadline
// expires. A timeout of zero uses the configured default. A second caller
// while a cycle is in flight gets KindReadInProgress without blocking.
func (c *Coordinator) Read(ctx context.Context, timeout time.Duration) (result *CanonicalResult, err error) {
	const op = "coordinator.read"

	if timeout <= 0 {
		timeout = c.timeout
	}
	if !c.gate.TryAcquire(1) {
		return nil, errs.New(errs.KindReadInProgress, op, "a read is already in progress")
	}
	defer c.gate.Release(1)

	sess := newSession()
	started := time.Now()
	c.logger.InfoTag("[READ]", "cycle %s started", sess.id)
	c.engine.Bus().Publish(engine.TopicCycleStarted, engine.CycleEvent{SessionID: sess.id, OK: true})

	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorTag("[READ]", "cycle %s panic: %v", sess.id, r)
			result = nil
			err = errs.New(errs.KindReadFailed, op, fmt.Sprintf("unexpected fault: %v", r))
		}
		c.publishFinished(sess, result, err)
		c.recordCycle(sess, result, err, time.Since(started))
	}()

	return c.run(ctx, sess, timeout)
}

func (c *Coordinator) run(ctx context.Context, sess *session, timeout time.Duration) (*CanonicalResult, error) {
	const op = "coordinator.read"

	defer c.cleanup(sess)

	dev, err := c.gateway.Ensure()
	if err != nil {
		return nil, err
	}

	scanDone := observability.StageSpan(ctx, sess.id, observability.StageScan)
	page, err := c.engine.Scan(ctx, dev, []engine.Light{engine.LightWhite, engine.LightInfrared})
	scanDone(err)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, op, "optical scan", err)
	}

	analyzeDone := observability.StageSpan(ctx, sess.id, observability.StageAnalyze)
	optical, err := c.engine.Analyze(ctx, engine.AnalyzeInput{Page: page}, opticalFields)
	analyzeDone(err)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, op, "optical analysis", err)
	}

	// The MRZ text and CAN double as chip access secrets.
	mrzKey := textOf(optical, engine.SourceMRZ, engine.FieldMRZText)
	canKey := textOf(optical, engine.SourceVIZ, engine.FieldCAN)

	card, err := c.connectCard()
	if err != nil {
		c.logger.WarnTag("[CHIP]", "card connect: %v", err)
		// A broken connect still degrades to optical when the page gave
		// us something; with nothing to salvage the chip error stands.
		if !hasOpticalData(optical) {
			return nil, err
		}
	}
	if card == nil {
		return c.opticalOnly(optical)
	}
	sess.card = card

	req := engine.ChipRead{SessionID: sess.id, Files: fullFileSet, AuthLevel: c.authLevel}
	h := c.subscribe(sess, req, mrzKey, canKey)
	defer c.unsubscribe(h)

	chipDone := observability.StageSpan(ctx, sess.id, observability.StageChipRead)
	task, err := c.engine.StartChipRead(card, req)
	if err != nil {
		chipDone(err)
		c.logger.WarnTag("[CHIP]", "start chip read: %v", err)
		return c.opticalOnly(optical)
	}
	sess.setTask(task)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sess.done:
	case <-timer.C:
		task.Stop()
		sess.resolve(errs.New(errs.KindTimeout, op, "chip read did not finish in time"))
	case <-ctx.Done():
		task.Stop()
		sess.resolve(errs.Wrap(errs.KindTimeout, op, "read cancelled", ctx.Err()))
	}
	<-sess.done
	chipDone(sess.outcome)
	if sess.outcome != nil {
		return nil, sess.outcome
	}

	chips := sess.chipDocuments()
	result := Merge(optical, chips)
	switch {
	case len(chips) == 0:
		result.Degradation = DegradationOpticalOnly
	case sess.authFailed.Load():
		result.Degradation = DegradationAuthFailed
	}
	if !result.HasData() {
		return nil, errs.New(errs.KindNoDocument, op, "document produced no usable data")
	}
	c.applyPhotoPolicy(result)

	requested, received := sess.counts()
	c.logger.InfoTag("[READ]", "cycle %s done: %d/%d file groups, %d chip documents",
		sess.id, received, requested, len(chips))
	return result, nil
}

// opticalOnly finalizes a cycle that never got chip data. Optical fields
// alone are still a success, just a degraded one; an empty page is not.
func (c *Coordinator) opticalOnly(optical engine.Document) (*CanonicalResult, error) {
	if !hasOpticalData(optical) {
		return nil, errs.New(errs.KindNoDocument, "coordinator.read", "no card present and no optical data")
	}
	result := Merge(optical, nil)
	result.Degradation = DegradationOpticalOnly
	c.applyPhotoPolicy(result)
	return result, nil
}

// connectCard finds the first reader with a card present and connects it.
// No card anywhere yields (nil, nil).
func (c *Coordinator) connectCard() (engine.Card, error) {
	readers, err := c.gateway.ListReaders()
	if err != nil {
		return nil, err
	}
	for _, r := range readers {
		if !r.CardPresent() {
			continue
		}
		card, err := r.Connect()
		if err != nil {
			return nil, errs.Wrap(errs.KindChipReadFailed, "coordinator.connect_card",
				"connect card on "+r.Name(), err)
		}
		return card, nil
	}
	return nil, nil
}

// sessionHandlers keeps the per-session callbacks addressable so they can be
// unsubscribed with the same function values.
type sessionHandlers struct {
	authWait     func(engine.AuthEvent)
	authFinished func(engine.AuthEvent)
	readBegin    func(engine.FileEvent)
	fileChecked  func(engine.FileEvent)
	readFinished func(engine.ReadFinishedEvent)
}

func (c *Coordinator) subscribe(sess *session, req engine.ChipRead, mrzKey, canKey string) *sessionHandlers {
	bus := c.engine.Bus()
	h := &sessionHandlers{}

	h.authWait = func(ev engine.AuthEvent) {
		if ev.SessionID != sess.id {
			return
		}
		task := sess.awaitTask(2 * time.Second)
		if task == nil {
			c.logger.WarnTag("[AUTH]", "cycle %s: auth input requested before task handle", sess.id)
			sess.authFailed.Store(true)
			return
		}
		key := engine.AuthKey{Kind: engine.AuthKeyDefault}
		switch {
		case mrzKey != "":
			key = engine.AuthKey{Kind: engine.AuthKeyMRZ, Value: mrzKey}
		case canKey != "":
			key = engine.AuthKey{Kind: engine.AuthKeyCAN, Value: canKey}
		}
		// A rejected key degrades the result but never aborts the cycle;
		// files readable without auth are still worth collecting.
		if err := task.ProvideAuthKey(key); err != nil {
			c.logger.WarnTag("[AUTH]", "cycle %s: auth key rejected: %v", sess.id, err)
			sess.authFailed.Store(true)
		}
	}

	h.authFinished = func(ev engine.AuthEvent) {
		if ev.SessionID != sess.id {
			return
		}
		if !ev.OK {
			c.logger.WarnTag("[AUTH]", "cycle %s: chip auth failed: %s", sess.id, ev.Detail)
			sess.authFailed.Store(true)
		}
	}

	h.readBegin = func(ev engine.FileEvent) {
		if ev.SessionID != sess.id {
			return
		}
		sess.markRequested(ev.File)
	}

	h.fileChecked = func(ev engine.FileEvent) {
		if ev.SessionID != sess.id {
			return
		}
		sess.markReceived(ev.File)
	}

	h.readFinished = func(ev engine.ReadFinishedEvent) {
		if ev.SessionID != sess.id {
			return
		}
		sess.markReceived(ev.File)
		if ev.OK && len(ev.Data) > 0 {
			doc, err := c.engine.Analyze(context.Background(), engine.AnalyzeInput{Data: ev.Data}, nil)
			if err != nil {
				c.logger.WarnTag("[CHIP]", "cycle %s: parse file %s: %v", sess.id, ev.File, err)
			} else {
				sess.addChipDoc(doc)
			}
		}
		// The terminal group resolves the outcome whether it succeeded or
		// not; a failed terminal read still lets optical data through.
		if ev.File == req.Terminal() {
			if !ev.OK {
				c.logger.WarnTag("[CHIP]", "cycle %s: terminal file group failed: %s", sess.id, ev.Detail)
			}
			sess.resolve(nil)
		}
	}

	bus.Subscribe(engine.TopicAuthWaitInput, h.authWait)
	bus.Subscribe(engine.TopicAuthFinished, h.authFinished)
	bus.Subscribe(engine.TopicReadBegin, h.readBegin)
	bus.Subscribe(engine.TopicFileChecked, h.fileChecked)
	bus.Subscribe(engine.TopicReadFinished, h.readFinished)
	return h
}

func (c *Coordinator) unsubscribe(h *sessionHandlers) {
	bus := c.engine.Bus()
	bus.Unsubscribe(engine.TopicAuthWaitInput, h.authWait)
	bus.Unsubscribe(engine.TopicAuthFinished, h.authFinished)
	bus.Unsubscribe(engine.TopicReadBegin, h.readBegin)
	bus.Unsubscribe(engine.TopicFileChecked, h.fileChecked)
	bus.Unsubscribe(engine.TopicReadFinished, h.readFinished)
}

// applyPhotoPolicy drops the photo when disabled by config or rejected by
// the validator.
func (c *Coordinator) applyPhotoPolicy(result *CanonicalResult) {
	if !c.includePhoto {
		result.Photo = nil
		return
	}
	if len(result.Photo) == 0 || c.photo == nil {
		return
	}
	if err := c.photo.Validate(result.Photo); err != nil {
		c.logger.WarnTag("[READ]", "photo rejected: %v", err)
		result.Photo = nil
	}
}

// cleanup releases the chip resources of one session. It runs on every exit
// path; faults here are logged and swallowed so the gate is always released.
func (c *Coordinator) cleanup(sess *session) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorTag("[READ]", "cycle %s cleanup panic: %v", sess.id, r)
		}
	}()
	if task := sess.chipTask(); task != nil {
		task.Stop()
	}
	if sess.card != nil {
		if err := sess.card.Disconnect(); err != nil {
			c.logger.WarnTag("[CHIP]", "cycle %s: card disconnect: %v", sess.id, err)
		}
		sess.card = nil
	}
}

func (c *Coordinator) publishFinished(sess *session, result *CanonicalResult, err error) {
	ev := engine.CycleEvent{SessionID: sess.id, OK: err == nil}
	if err != nil {
		ev.Code = string(errs.KindOf(err))
		ev.Message = err.Error()
	} else {
		ev.Code = "success"
		ev.Message = result.Degradation.Message()
	}
	c.engine.Bus().Publish(engine.TopicCycleFinished, ev)
}

func (c *Coordinator) recordCycle(sess *session, result *CanonicalResult, err error, elapsed time.Duration) {
	stats := observability.CycleStats{
		SessionID: sess.id,
		Outcome:   "success",
		Duration:  elapsed,
	}
	if err != nil {
		stats.Outcome = string(errs.KindOf(err))
	} else {
		stats.Degradation = result.Degradation.String()
	}
	_, stats.FileGroups = sess.counts()
	observability.RecordCycle(context.Background(), stats)
}
