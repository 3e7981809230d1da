package gateway

import "sync"

// Conn is a non-owning handle to one live client connection. The transport
// layer owns the socket; the gateway only sends through it and observes its
// open state. Implementations must allow concurrent Send calls.
type Conn interface {
	Send(v any) error
	Open() bool
}

// observerQueueDepth bounds how many undelivered frames one observer may
// hold before newer frames are dropped for it.
const observerQueueDepth = 16

// observerQueue decouples broadcast from delivery. Frames are enqueued
// without blocking and drained to the connection by a dedicated goroutine;
// a full queue drops the frame for that observer only.
type observerQueue struct {
	frames chan any
	done   chan struct{}
}

func newObserverQueue(conn Conn) *observerQueue {
	q := &observerQueue{
		frames: make(chan any, observerQueueDepth),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-q.done:
				return
			case v := <-q.frames:
				if conn.Open() {
					_ = conn.Send(v)
				}
			}
		}
	}()
	return q
}

func (q *observerQueue) enqueue(v any) {
	select {
	case q.frames <- v:
	default:
	}
}

func (q *observerQueue) stop() {
	close(q.done)
}

// Registry holds the device-identifier to connection mapping and the set of
// dashboard observers. One instance per process, shared by every connection
// lifecycle and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]Conn
	observers map[Conn]*observerQueue
}

func NewRegistry() *Registry {
	return &Registry{
		devices:   map[string]Conn{},
		observers: map[Conn]*observerQueue{},
	}
}

// Put binds a device identifier to its connection, replacing any existing
// entry. The superseded handle is not closed; its own close path uses Remove
// and cannot evict the replacement.
func (r *Registry) Put(identifier string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[identifier] = conn
}

func (r *Registry) Get(identifier string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.devices[identifier]
	return conn, ok
}

// Remove drops the entry only when it still holds conn, so a late close of a
// superseded connection cannot evict a newer registration. Reports whether
// the entry was removed.
func (r *Registry) Remove(identifier string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.devices[identifier]
	if !ok || current != conn {
		return false
	}
	delete(r.devices, identifier)
	return true
}

// ConnectedIdentifiers lists identifiers whose handle reports itself open.
func (r *Registry) ConnectedIdentifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identifiers := make([]string, 0, len(r.devices))
	for identifier, conn := range r.devices {
		if conn.Open() {
			identifiers = append(identifiers, identifier)
		}
	}
	return identifiers
}

// AddObserver subscribes a dashboard connection to frame broadcasts.
// Adding the same connection twice is a no-op.
func (r *Registry) AddObserver(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[conn]; ok {
		return
	}
	r.observers[conn] = newObserverQueue(conn)
}

func (r *Registry) RemoveObserver(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.observers[conn]; ok {
		q.stop()
		delete(r.observers, conn)
	}
}

// Broadcast enqueues a message for every observer. Delivery is asynchronous
// and best effort per observer: a slow, backlogged, or closed observer
// drops the message and never delays the other observers or the caller.
func (r *Registry) Broadcast(v any) {
	r.mu.RLock()
	queues := make([]*observerQueue, 0, len(r.observers))
	for _, q := range r.observers {
		queues = append(queues, q)
	}
	r.mu.RUnlock()

	for _, q := range queues {
		q.enqueue(v)
	}
}
