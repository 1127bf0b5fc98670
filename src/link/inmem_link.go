package link

import "sync"

// InmemLink implements the Link interface in memory, to allow the engine to
// be tested without a physical node on the other end.
type InmemLink struct {
	sync.Mutex

	rx     chan string
	sent   []string
	closed bool
}

// NewInmemLink ...
func NewInmemLink() *InmemLink {
	return &InmemLink{
		rx: make(chan string, 64),
	}
}

// WriteLine implements the Link interface. Written lines are recorded for
// inspection.
func (l *InmemLink) WriteLine(line string) error {
	l.Lock()
	defer l.Unlock()

	l.sent = append(l.sent, line)

	return nil
}

// ReadLine implements the Link interface.
func (l *InmemLink) ReadLine() (string, bool) {
	select {
	case line := <-l.rx:
		return line, true
	default:
		return "", false
	}
}

// Close implements the Link interface.
func (l *InmemLink) Close() error {
	l.Lock()
	defer l.Unlock()

	l.closed = true

	return nil
}

// Inject queues a line for the engine to read, as if the node had sent it.
// Lines injected after Close are dropped.
func (l *InmemLink) Inject(line string) {
	l.Lock()
	defer l.Unlock()

	if l.closed {
		return
	}

	l.rx <- line
}

// Sent returns a copy of the lines written to this link.
func (l *InmemLink) Sent() []string {
	l.Lock()
	defer l.Unlock()

	sent := make([]string, len(l.sent))
	copy(sent, l.sent)

	return sent
}
