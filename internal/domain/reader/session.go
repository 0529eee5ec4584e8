package reader

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
)

// session is the per-call state of one read cycle. It is owned by the
// coordinator; only the engine's event callbacks touch it concurrently, and
// those go through the mutex or the set-once outcome cell.
type session struct {
	id string

	// card is only touched by the coordinator goroutine.
	card engine.Card

	mu        sync.Mutex
	task      engine.ChipTask
	chipDocs  []engine.Document
	requested map[engine.ChipFileID]struct{}
	received  map[engine.ChipFileID]struct{}

	// taskReady closes once the chip task handle is stored, so event
	// handlers that fire before StartChipRead returns can wait for it.
	taskReady chan struct{}

	authFailed atomic.Bool

	// Outcome cell: resolved exactly once by whichever terminal event wins.
	resolved atomic.Bool
	outcome  error
	done     chan struct{}
}

func newSession() *session {
	return &session{
		id:        uuid.New().String(),
		requested: make(map[engine.ChipFileID]struct{}),
		received:  make(map[engine.ChipFileID]struct{}),
		taskReady: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *session) setTask(t engine.ChipTask) {
	s.mu.Lock()
	s.task = t
	s.mu.Unlock()
	close(s.taskReady)
}

func (s *session) chipTask() engine.ChipTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// awaitTask blocks until the task handle is available or the wait expires.
func (s *session) awaitTask(d time.Duration) engine.ChipTask {
	select {
	case <-s.taskReady:
		return s.chipTask()
	case <-time.After(d):
		return nil
	}
}

// resolve sets the outcome once; later calls are no-ops. The outcome write
// is ordered before the channel close, so readers of outcome after done is
// closed see the stored value.
func (s *session) resolve(err error) bool {
	if !s.resolved.CompareAndSwap(false, true) {
		return false
	}
	s.outcome = err
	close(s.done)
	return true
}

func (s *session) addChipDoc(doc engine.Document) {
	s.mu.Lock()
	s.chipDocs = append(s.chipDocs, doc)
	s.mu.Unlock()
}

func (s *session) chipDocuments() []engine.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Document(nil), s.chipDocs...)
}

func (s *session) markRequested(id engine.ChipFileID) {
	s.mu.Lock()
	s.requested[id] = struct{}{}
	s.mu.Unlock()
}

func (s *session) markReceived(id engine.ChipFileID) {
	s.mu.Lock()
	s.received[id] = struct{}{}
	s.mu.Unlock()
}

// counts returns the requested/received file tallies for diagnostics.
func (s *session) counts() (requested, received int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requested), len(s.received)
}
