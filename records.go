package datalink

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

// wordSize is the platform pointer width in bytes. The driver pads every
// record in the receive buffer to this boundary.
const wordSize = int(unsafe.Sizeof(uintptr(0)))

// recordHeaderSize covers the two header fields that lead every framed
// record: word 0 is the header length (record start to payload start), word 1
// the captured payload length, both in the platform's native byte order.
const recordHeaderSize = 2 * wordSize

// wordAlign rounds a byte offset up to the next pointer-word boundary, the
// same rounding the driver applies between records.
func wordAlign(n int) int {
	return (n + wordSize - 1) &^ (wordSize - 1)
}

// getEndianness discover the endianness of our current system
func getEndianness() (binary.ByteOrder, error) {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian, nil
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian, nil
	default:
		return nil, errors.New("could not determine native endianness")
	}
}

func readWord(order binary.ByteOrder, b []byte) uint64 {
	if wordSize == 8 {
		return order.Uint64(b)
	}
	return uint64(order.Uint32(b))
}

// frameRecord locates one captured frame inside the receive backing buffer.
// The offset is relative to the buffer base and stays valid only until the
// next receive overwrites the buffer.
type frameRecord struct {
	offset int
	length int
}

// frameQueue is a FIFO of decoded frame records, refilled one whole receive
// buffer at a time.
type frameQueue struct {
	records []frameRecord
	head    int
}

func newFrameQueue(bufcap int) *frameQueue {
	// enough room for minimally sized frames without growing
	n := bufcap / 64
	if n < 1 {
		n = 1
	}
	return &frameQueue{records: make([]frameRecord, 0, n)}
}

func (q *frameQueue) empty() bool { return q.head >= len(q.records) }

func (q *frameQueue) push(r frameRecord) { q.records = append(q.records, r) }

func (q *frameQueue) pop() frameRecord {
	r := q.records[q.head]
	q.head++
	return r
}

func (q *frameQueue) reset() {
	q.records = q.records[:0]
	q.head = 0
}

// decodeRecords walks the driver-framed records in buf and appends one
// frameRecord per frame to q. Every header read and payload bound is checked
// against the delivered length before use; a violation empties q and reports
// a decode fault, since none of the remaining boundaries can be trusted.
func decodeRecords(q *frameQueue, buf []byte, order binary.ByteOrder) error {
	end := len(buf)
	for cur := 0; cur < end; {
		if cur+recordHeaderSize > end {
			q.reset()
			return decodeFault(errors.Errorf("record header at offset %d overruns the %d delivered bytes", cur, end))
		}
		hdrLen := readWord(order, buf[cur:cur+wordSize])
		capLen := readWord(order, buf[cur+wordSize:cur+recordHeaderSize])
		if hdrLen > uint64(end-cur) {
			q.reset()
			return decodeFault(errors.Errorf("record at offset %d: header length %d overruns the %d delivered bytes", cur, hdrLen, end))
		}
		start := cur + int(hdrLen)
		if capLen > uint64(end-start) {
			q.reset()
			return decodeFault(errors.Errorf("record at offset %d: captured length %d overruns the %d delivered bytes", cur, capLen, end))
		}
		q.push(frameRecord{offset: start, length: int(capLen)})
		adv := wordAlign(int(hdrLen) + int(capLen))
		if adv == 0 {
			q.reset()
			return decodeFault(errors.Errorf("zero-length record at offset %d", cur))
		}
		cur += adv
	}
	return nil
}

func decodeFault(cause error) error {
	return &DriverError{Op: "receive buffer decode", Err: cause}
}
