package relay

import (
	"errors"
	"sync"
)

var errPeerGone = errors.New("peer gone")

// fakeTransport records payloads and close calls.
type fakeTransport struct {
	mu          sync.Mutex
	received    [][]byte
	sendErr     error
	closes      int
	closeReason string
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeTransport) CloseWithReason(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.closeReason = reason
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, p := range f.received {
		out[i] = string(p)
	}
	return out
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func newTestConn() (*Connection, *fakeTransport) {
	transport := &fakeTransport{}
	return NewConnection(transport, "127.0.0.1:1234"), transport
}
