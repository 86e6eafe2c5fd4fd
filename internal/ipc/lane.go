package ipc

import (
	"fmt"
	"sync"

	"github.com/zishang520/engine.io/v2/events"

	"github.com/zjrosen/erwt/internal/log"
)

// lane is one direction of the bus: an emitter plus an unbounded FIFO of
// pending deliveries drained by a single goroutine.
type lane struct {
	name    string
	emitter events.EventEmitter

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    <-chan struct{}
}

func newLane(name string, done <-chan struct{}) *lane {
	return &lane{
		name:    name,
		emitter: events.New(),
		wake:    make(chan struct{}, 1),
		done:    done,
	}
}

// post queues fn for the lane goroutine.
func (l *lane) post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// emit queues an Emit of name with ev prepended to args.
func (l *lane) emit(name string, ev *Event, args []any, after func()) error {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, ev)
	payload = append(payload, args...)
	return l.post(func() {
		if after != nil {
			defer after()
		}
		l.emitter.Emit(events.EventName(name), payload...)
	})
}

func (l *lane) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			batch := l.pending
			l.pending = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				select {
				case <-l.done:
					return
				default:
				}
				l.safely(fn)
			}
		}
	}
}

func (l *lane) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorErr(log.CatIPC, "Listener panicked", fmt.Errorf("%v", r), "lane", l.name)
		}
	}()
	fn()
}
