package datalink

import (
	"sync"
	"syscall"
	"testing"
)

// Windows packet driver error codes used by the scripted failures.
const (
	errnoDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errnoNoData syscall.Errno = 232 // ERROR_NO_DATA
)

type mockHandle struct {
	name string
}

type mockDescriptor struct {
	buf           []byte
	length        int
	bytesReceived int
}

func (d *mockDescriptor) Length() int        { return d.length }
func (d *mockDescriptor) SetLength(n int)    { d.length = n }
func (d *mockDescriptor) BytesReceived() int { return d.bytesReceived }

// mockDriver is a scriptable in-memory Driver. Failures are injected per
// entry point and call number with failNext; transmitted frames are captured
// exactly as the driver would read them, from the buffer base up to the
// descriptor length; receives either replay the scripted batches in order or
// defer to the onReceive hook.
type mockDriver struct {
	mu sync.Mutex

	calls  []string
	counts map[string]int
	failOn map[string]map[int]syscall.Errno

	opens  int
	closes int
	allocs int
	frees  int

	filterMode   FilterMode
	kernelBuffer int
	immediate    bool

	transmits [][]byte
	batches   [][]byte
	// onReceive, when set, replaces the scripted batches. It runs with the
	// driver lock held and may touch the driver fields directly.
	onReceive func(d *mockDescriptor) error
}

func newMockDriver() *mockDriver {
	return &mockDriver{
		counts: map[string]int{},
		failOn: map[string]map[int]syscall.Errno{},
	}
}

// failNext makes the nth call (1-based) of the named entry point fail with
// the given code.
func (m *mockDriver) failNext(op string, nth int, code syscall.Errno) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[op] == nil {
		m.failOn[op] = map[int]syscall.Errno{}
	}
	m.failOn[op][nth] = code
}

func (m *mockDriver) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockDriver) sentFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.transmits))
	copy(out, m.transmits)
	return out
}

// step logs the call and reports whether this one is scripted to fail.
// Callers hold the lock.
func (m *mockDriver) step(op string) (syscall.Errno, bool) {
	m.calls = append(m.calls, op)
	m.counts[op]++
	code, fail := m.failOn[op][m.counts[op]]
	return code, fail
}

func (m *mockDriver) OpenAdapter(name string) (DeviceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("open"); fail {
		return nil, &ResourceError{Resource: "adapter " + name, Code: code}
	}
	m.opens++
	return &mockHandle{name: name}, nil
}

func (m *mockDriver) CloseAdapter(h DeviceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step("close")
	m.closes++
}

func (m *mockDriver) SetHardwareFilter(h DeviceHandle, mode FilterMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("filter"); fail {
		return &DriverError{Op: "PacketSetHwFilter", Code: code}
	}
	m.filterMode = mode
	return nil
}

func (m *mockDriver) SetKernelBufferSize(h DeviceHandle, bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("buffsize"); fail {
		return &DriverError{Op: "PacketSetBuff", Code: code}
	}
	m.kernelBuffer = bytes
	return nil
}

func (m *mockDriver) SetImmediateDelivery(h DeviceHandle, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("mintocopy"); fail {
		return &DriverError{Op: "PacketSetMinToCopy", Code: code}
	}
	m.immediate = on
	return nil
}

func (m *mockDriver) AllocateDescriptor() (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("alloc"); fail {
		return nil, &ResourceError{Resource: "packet descriptor", Code: code}
	}
	m.allocs++
	return &mockDescriptor{}, nil
}

func (m *mockDriver) BindDescriptor(d Descriptor, buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step("bind")
	md := d.(*mockDescriptor)
	md.buf = buf
	md.length = len(buf)
}

func (m *mockDriver) FreeDescriptor(d Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step("free")
	m.frees++
}

func (m *mockDriver) Transmit(h DeviceHandle, d Descriptor, sync bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("transmit"); fail {
		return &DriverError{Op: "PacketSendPacket", Code: code}
	}
	md := d.(*mockDescriptor)
	out := make([]byte, md.length)
	copy(out, md.buf[:md.length])
	m.transmits = append(m.transmits, out)
	return nil
}

func (m *mockDriver) Receive(h DeviceHandle, d Descriptor, sync bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, fail := m.step("receive"); fail {
		return &DriverError{Op: "PacketReceivePacket", Code: code}
	}
	md := d.(*mockDescriptor)
	if m.onReceive != nil {
		return m.onReceive(md)
	}
	if len(m.batches) == 0 {
		return &DriverError{Op: "PacketReceivePacket", Code: errnoNoData}
	}
	b := m.batches[0]
	m.batches = m.batches[1:]
	copy(md.buf, b)
	md.bytesReceived = len(b)
	return nil
}

func newTestChannel(t *testing.T, drv *mockDriver, readSize, writeSize int) (*Sender, *Receiver) {
	t.Helper()
	tx, rx, err := OpenWith(drv, Interface{Index: 3, Name: "mock0"}, Config{
		ReadBufferSize:  readSize,
		WriteBufferSize: writeSize,
	})
	if err != nil {
		t.Fatalf("unexpected error opening channel: %v", err)
	}
	t.Cleanup(func() {
		tx.Close()
		rx.Close()
	})
	return tx, rx
}
