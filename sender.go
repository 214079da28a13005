package datalink

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Sender is the transmitting half of a datalink channel. It stages frames in
// its write buffer and hands them to the driver one at a time. The send
// methods must not be called concurrently with each other; Close may be
// called from any goroutine, and using a Sender and its paired Receiver from
// two goroutines is fine, the two sides work on disjoint descriptors.
type Sender struct {
	adapter *adapter
	fb      *frameBuffer

	// mu serializes driver calls on the write descriptor against its
	// release; released is guarded by it.
	mu       sync.Mutex
	closed   atomic.Bool
	released bool
}

// BuildAndSend stages and transmits count frames of frameSize bytes each.
// For every frame it calls build with a writable slice over exactly that
// frame's bytes; build populates the link-layer header and payload in place.
// Frames go out strictly in build order, one driver transmit per frame.
//
// When count*frameSize does not fit the send buffer, BuildAndSend returns
// ErrTooLarge before building anything; a batch that exactly fills the
// buffer is also rejected.
//
// The first failing transmit aborts the batch. Frames sent before it are
// already on the wire and are not rolled back, and the returned error does
// not say how many went out.
func (s *Sender) BuildAndSend(count, frameSize int, build func(frame []byte)) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if count < 0 || frameSize < 0 {
		return errors.Errorf("negative batch shape: count %d, frame size %d", count, frameSize)
	}
	total := count * frameSize
	if frameSize > 0 && total/frameSize != count {
		return ErrTooLarge
	}

	s.mu.Lock()
	defer func() {
		// a Close that arrived while the batch was in flight hands the
		// release off to us
		if s.closed.Load() {
			s.releaseLocked()
		}
		s.mu.Unlock()
	}()
	if s.closed.Load() {
		return ErrClosed
	}

	capacity := s.fb.desc.Length()
	if total >= capacity {
		return ErrTooLarge
	}

	// Bound the staged view by the descriptor capacity and the backing
	// buffer, never beyond either, however the two disagree.
	usable := total
	if capacity < usable {
		usable = capacity
	}
	if usable > len(s.fb.buf) {
		usable = len(s.fb.buf)
	}
	staged := s.fb.buf[:usable]

	for off := 0; off < len(staged); off += frameSize {
		end := off + frameSize
		if end > len(staged) {
			end = len(staged)
		}
		build(staged[off:end])

		// The driver transmits length-field bytes from the buffer start,
		// so point the field at this one frame and restore the recorded
		// capacity whatever the call returns.
		prev := s.fb.desc.Length()
		s.fb.desc.SetLength(frameSize)
		err := s.adapter.drv.Transmit(s.adapter.handle, s.fb.desc, false)
		s.fb.desc.SetLength(prev)
		if err != nil {
			return err
		}
	}
	return nil
}

// WritePacketData transmits one frame holding exactly data. It is the
// single-frame convenience over BuildAndSend.
func (s *Sender) WritePacketData(data []byte) error {
	return s.BuildAndSend(1, len(data), func(frame []byte) {
		copy(frame, data)
	})
}

// Close marks the Sender closed; subsequent sends return ErrClosed. The
// send-side descriptor is freed and the shared adapter released immediately
// when no batch is in flight, otherwise as soon as the active batch
// finishes; the driver is never asked to free a descriptor it is still
// transmitting from. The device itself closes once the paired Receiver is
// closed too. Close is idempotent.
func (s *Sender) Close() {
	s.closed.Store(true)
	if s.mu.TryLock() {
		s.releaseLocked()
		s.mu.Unlock()
	}
}

func (s *Sender) releaseLocked() {
	if s.released {
		return
	}
	s.released = true
	s.fb.free()
	s.adapter.release()
}
