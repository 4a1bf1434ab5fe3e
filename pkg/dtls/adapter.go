package dtls

import (
	"sync"
	"time"

	"github.com/jitsi/libjitsi-sub007/internal/bufferpool"
)

// recordType is a DTLS record's ContentType octet (RFC 6347 §4.1).
type recordType byte

// Content types recognized for flight-boundary and coalescing decisions,
// grounded on lanikai-alohartc's dtls package constants and the set the
// mux matcher already recognizes.
const (
	recordTypeChangeCipherSpec recordType = 20
	recordTypeAlert            recordType = 21
	recordTypeHandshake        recordType = 22
	recordTypeApplicationData  recordType = 23
)

// handshakeType is the sub-type octet of a handshake record's body.
type handshakeType byte

const (
	handshakeHelloRequest       handshakeType = 0
	handshakeClientHello        handshakeType = 1
	handshakeServerHello        handshakeType = 2
	handshakeHelloVerifyRequest handshakeType = 3
	handshakeServerHelloDone    handshakeType = 14
	handshakeFinished           handshakeType = 20
)

// flightEndingTypes are the handshake sub-types whose arrival or departure
// marks the end of a flight: the adapter must flush rather than coalesce
// when the next pending record is one of these (spec §4.1).
var flightEndingTypes = map[handshakeType]bool{
	handshakeClientHello:        true,
	handshakeHelloVerifyRequest: true,
	handshakeServerHelloDone:    true,
	handshakeFinished:           true,
	handshakeHelloRequest:       true,
}

type datagram struct {
	buf    []byte
	offset int
}

func (d *datagram) remaining() int { return len(d.buf) - d.offset }

// Adapter is the datagram-queue transport C2 runs its handshake over
// (spec §4.1, "Datagram Adapter"): a bounded FIFO of inbound DTLS-looking
// datagrams fed by the packet transformer, plus a coalescing outbound
// buffer, exposing the blocking receive/send shape a DTLS state machine
// expects from its transport.
type Adapter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	pool   *bufferpool.Pool
	send   func([]byte) error
	mtu    int

	queue    []*datagram
	capacity int
	closed   bool

	coalesce []byte
}

// NewAdapter creates an Adapter with the given inbound queue capacity and
// outbound MTU budget. send is invoked to actually write a coalesced or
// flushed outbound datagram (typically the mux endpoint's WriteTo).
func NewAdapter(capacity, mtu int, pool *bufferpool.Pool, send func([]byte) error) *Adapter {
	a := &Adapter{
		pool:     pool,
		send:     send,
		mtu:      mtu,
		capacity: capacity,
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Enqueue is called by the packet transformer (C4) for every inbound
// datagram identified as DTLS. When the queue is full the oldest entry is
// dropped and its buffer recycled into the pool before the new one is
// admitted.
func (a *Adapter) Enqueue(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	if len(a.queue) >= a.capacity {
		dropped := a.queue[0]
		a.queue = a.queue[1:]
		if a.pool != nil {
			a.pool.Put(dropped.buf)
		}
	}
	a.queue = append(a.queue, &datagram{buf: buf})
	a.cond.Broadcast()
}

// Receive copies from the head datagram into p, advancing (or retiring)
// it, and returns the number of bytes copied. It returns -1 if the wait
// times out without data arriving, matching the "zero distinguishable
// from no-datagram" contract a DTLS library expects from its transport.
// timeoutMs == 0 waits forever.
func (a *Adapter) Receive(p []byte, timeoutMs int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := time.Time{}
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for len(a.queue) == 0 {
		if a.closed {
			return 0, &ClosedError{}
		}
		if timeoutMs > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return -1, nil
			}
			timedWait(a.cond, remaining)
		} else {
			a.cond.Wait()
		}
		if a.closed {
			return 0, &ClosedError{}
		}
	}

	head := a.queue[0]
	n := copy(p, head.buf[head.offset:])
	head.offset += n
	if head.remaining() == 0 {
		a.queue = a.queue[1:]
		if a.pool != nil {
			a.pool.Put(head.buf)
		}
	}
	return n, nil
}

// Send queues a record for output, coalescing it with any buffered
// records unless its type ends a flight, crosses the MTU budget, or is an
// alert/application_data record (never coalesced per spec §4.1).
func (a *Adapter) Send(record []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return &ClosedError{}
	}
	if len(record) == 0 {
		return nil
	}

	rt := recordType(record[0])
	coalescible := rt == recordTypeChangeCipherSpec || rt == recordTypeHandshake
	endsFlight := rt == recordTypeHandshake && (len(record) < 14 || flightEndingTypes[handshakeType(record[13])])

	if !coalescible || len(a.coalesce)+len(record) > a.mtu {
		if err := a.flushLocked(); err != nil {
			return err
		}
	}

	a.coalesce = append(a.coalesce, record...)

	if !coalescible || endsFlight {
		return a.flushLocked()
	}
	return nil
}

// Flush forces out any buffered coalesced records immediately. C2 calls
// this after a message it knows ends its side of a flight, since the
// coalescing heuristic only recognizes flight-ending handshake types by
// inspecting the wire record.
func (a *Adapter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *Adapter) flushLocked() error {
	if len(a.coalesce) == 0 {
		return nil
	}
	out := a.coalesce
	a.coalesce = nil
	return a.send(out)
}

// Close unblocks every pending and future Receive call with a CLOSED
// error and releases queued buffers back to the pool.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	for _, d := range a.queue {
		if a.pool != nil {
			a.pool.Put(d.buf)
		}
	}
	a.queue = nil
	a.cond.Broadcast()
	return nil
}

// timedWait wakes cond.Wait after d elapses by running the wait on a
// helper goroutine and racing it against a timer; cond's lock is held by
// the caller throughout, matching sync.Cond's contract.
func timedWait(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
