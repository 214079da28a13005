package datalink

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
)

// Receiver is the receiving half of a datalink channel. Each blocking
// receive fills the read buffer with a batch of driver-framed records; the
// Receiver decodes the batch into a frame queue and yields one frame per
// read, in capture order. The read methods must not be called concurrently
// with each other; Close may be called from any goroutine, and pairing with
// a Sender on another goroutine is fine.
type Receiver struct {
	adapter *adapter
	fb      *frameBuffer
	order   binary.ByteOrder
	queue   *frameQueue
	index   int

	// mu serializes driver calls on the read descriptor against its
	// release; released is guarded by it.
	mu       sync.Mutex
	closed   atomic.Bool
	released bool
}

// ZeroCopyReadPacketData returns the next captured frame as a view directly
// into the receive buffer. When the frame queue is empty it first issues a
// blocking receive, which waits for the driver to deliver data; there is no
// timeout and no way to interrupt the wait. The returned slice is valid only
// until a later read refills the buffer; callers that keep frames must copy
// them, or use ReadPacketData.
func (r *Receiver) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	var ci gopacket.CaptureInfo
	if r.closed.Load() {
		return nil, ci, ErrClosed
	}
	r.mu.Lock()
	defer func() {
		// a Close that arrived while the driver call was in flight hands
		// the release off to us
		if r.closed.Load() {
			r.releaseLocked()
		}
		r.mu.Unlock()
	}()
	if r.closed.Load() {
		return nil, ci, ErrClosed
	}
	if r.queue.empty() {
		err := r.adapter.drv.Receive(r.adapter.handle, r.fb.desc, false)
		if r.closed.Load() {
			return nil, ci, ErrClosed
		}
		if err != nil {
			return nil, ci, err
		}
		n := r.fb.desc.BytesReceived()
		if n < 0 || n > len(r.fb.buf) {
			return nil, ci, decodeFault(errors.Errorf("driver reported %d bytes in a %d byte buffer", n, len(r.fb.buf)))
		}
		r.queue.reset()
		if err := decodeRecords(r.queue, r.fb.buf[:n], r.order); err != nil {
			return nil, ci, err
		}
		if r.queue.empty() {
			return nil, ci, ErrNoFrames
		}
	}
	rec := r.queue.pop()
	ci = gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  rec.length,
		Length:         rec.length,
		InterfaceIndex: r.index,
	}
	return r.fb.buf[rec.offset : rec.offset+rec.length], ci, nil
}

// ReadPacketData is ZeroCopyReadPacketData with the frame copied out, so the
// result survives later reads. It satisfies gopacket.PacketDataSource.
func (r *Receiver) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := r.ZeroCopyReadPacketData()
	if err != nil {
		return nil, ci, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, ci, nil
}

// Listen pumps captured frames into the returned channel. Every Packet
// carries its own copy of the frame bytes. Empty deliveries are skipped; any
// other receive error is forwarded on the channel and ends the pump. Closing
// the Receiver ends the pump only once the in-flight blocking receive
// returns; on an idle adapter that wait cannot be interrupted, so the pump
// may linger until the next delivery.
func (r *Receiver) Listen() chan Packet {
	c := make(chan Packet, 50)
	go func() {
		defer close(c)
		for {
			b, ci, err := r.ReadPacketData()
			if errors.Is(err, ErrNoFrames) {
				continue
			}
			if errors.Is(err, ErrClosed) {
				return
			}
			c <- Packet{B: b, Info: ci, Error: err}
			if err != nil {
				return
			}
		}
	}()
	return c
}

// LinkType reports the link type of the frames this channel yields,
// compliant with pcap-linktype(7).
func (r *Receiver) LinkType() uint32 {
	return LinkTypeEthernet
}

// Close marks the Receiver closed; subsequent reads return ErrClosed. The
// read-side descriptor is freed and the shared adapter released immediately
// when no read is in flight, otherwise as soon as the active driver call
// returns; the driver is never asked to free a descriptor it is still
// filling. The device itself closes once the paired Sender is closed too.
// Close is idempotent. Frame views handed out earlier keep their bytes, the
// backing buffer is garbage collected with them.
func (r *Receiver) Close() {
	r.closed.Store(true)
	if r.mu.TryLock() {
		r.releaseLocked()
		r.mu.Unlock()
	}
}

func (r *Receiver) releaseLocked() {
	if r.released {
		return
	}
	r.released = true
	r.fb.free()
	r.adapter.release()
}
