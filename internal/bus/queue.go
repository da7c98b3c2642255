package bus

import "sync"

// queue is an unbounded FIFO feeding one subscriber channel.
type queue struct {
	mu     sync.Mutex
	items  []Event
	signal chan struct{}
	done   chan struct{}
	out    chan Event
}

func newQueue() *queue {
	return &queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
}

func (q *queue) push(evt Event) {
	q.mu.Lock()
	q.items = append(q.items, evt)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	evt := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	return evt, true
}

func (q *queue) run() {
	defer close(q.out)
	for {
		evt, ok := q.pop()
		if !ok {
			select {
			case <-q.signal:
				continue
			case <-q.done:
				return
			}
		}
		select {
		case q.out <- evt:
		case <-q.done:
			return
		}
	}
}
