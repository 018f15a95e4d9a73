package orchestrator

import (
	"sync"

	"go.uber.org/zap"

	"zapretd/internal/domain"
)

// statusHub fans status events out to channels and callbacks. Callbacks run
// on a dispatch goroutine in event order, never on the notifying goroutine,
// so a callback may call back into the orchestrator.
type statusHub struct {
	mu        sync.Mutex
	logger    *zap.Logger
	nextID    int
	observers map[int]chan domain.StatusEvent
	callbacks []domain.StatusObserver

	pending     []domain.StatusEvent
	dispatching bool
}

func (s *statusHub) subscribe(buffer int) (<-chan domain.StatusEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.StatusEvent, buffer)

	s.mu.Lock()
	if s.observers == nil {
		s.observers = make(map[int]chan domain.StatusEvent)
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *statusHub) onStatus(fn domain.StatusObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

func (s *statusHub) notify(event domain.StatusEvent) {
	s.notifyIf(event, nil)
}

// notifyIf delivers event only when current reports true. current runs under
// the hub lock, so no other event can be delivered between check and send.
func (s *statusHub) notifyIf(event domain.StatusEvent, current func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current != nil && !current() {
		return false
	}
	for id, ch := range s.observers {
		select {
		case ch <- event:
		default:
			if s.logger != nil {
				s.logger.Debug("status observer full, event dropped", zap.Int("observer", id))
			}
		}
	}
	if len(s.callbacks) > 0 {
		s.pending = append(s.pending, event)
		if !s.dispatching {
			s.dispatching = true
			go s.dispatch()
		}
	}
	return true
}

func (s *statusHub) dispatch() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		event := s.pending[0]
		s.pending = s.pending[1:]
		callbacks := append([]domain.StatusObserver(nil), s.callbacks...)
		s.mu.Unlock()

		for _, fn := range callbacks {
			fn(event)
		}
	}
}
