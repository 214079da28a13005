//go:build windows

package datalink

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Entry points of the Npcap/WinPcap packet driver's user-mode library.
var (
	packetDLL                = windows.NewLazySystemDLL("Packet.dll")
	procPacketOpenAdapter    = packetDLL.NewProc("PacketOpenAdapter")
	procPacketCloseAdapter   = packetDLL.NewProc("PacketCloseAdapter")
	procPacketSetHwFilter    = packetDLL.NewProc("PacketSetHwFilter")
	procPacketSetBuff        = packetDLL.NewProc("PacketSetBuff")
	procPacketSetMinToCopy   = packetDLL.NewProc("PacketSetMinToCopy")
	procPacketAllocatePacket = packetDLL.NewProc("PacketAllocatePacket")
	procPacketInitPacket     = packetDLL.NewProc("PacketInitPacket")
	procPacketFreePacket     = packetDLL.NewProc("PacketFreePacket")
	procPacketSendPacket     = packetDLL.NewProc("PacketSendPacket")
	procPacketReceivePacket  = packetDLL.NewProc("PacketReceivePacket")
)

// minToCopyDefault is the driver's stock minimum-bytes-to-copy threshold,
// restored when immediate delivery is switched off.
const minToCopyDefault = 16000

// npcapPacket mirrors the driver's PACKET struct from Packet32.h. The
// allocation itself is owned by Packet.dll; only the length and
// bytes-received fields are touched from Go.
type npcapPacket struct {
	hEvent        windows.Handle
	overlapped    windows.Overlapped
	buffer        uintptr
	length        uint32
	bytesReceived uint32
	ioComplete    byte
}

type npcapHandle uintptr

type npcapDescriptor struct {
	pkt *npcapPacket
	// bound backing buffer; the driver keeps a pointer into it, so the
	// slice stays referenced here until FreeDescriptor.
	buf []byte
}

func (d *npcapDescriptor) Length() int        { return int(d.pkt.length) }
func (d *npcapDescriptor) SetLength(n int)    { d.pkt.length = uint32(n) }
func (d *npcapDescriptor) BytesReceived() int { return int(d.pkt.bytesReceived) }

// NpcapDriver is the Driver backed by the installed Npcap or WinPcap packet
// driver. The zero value is ready to use; Packet.dll is loaded lazily on the
// first call.
type NpcapDriver struct{}

func defaultDriver() (Driver, error) {
	return NpcapDriver{}, nil
}

func errnoOf(err error) syscall.Errno {
	if e, ok := err.(syscall.Errno); ok {
		return e
	}
	return 0
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

func (NpcapDriver) OpenAdapter(name string) (DeviceHandle, error) {
	p, err := windows.BytePtrFromString(name)
	if err != nil {
		return nil, errors.Wrapf(err, "adapter name %q", name)
	}
	r, _, callErr := procPacketOpenAdapter.Call(uintptr(unsafe.Pointer(p)))
	if r == 0 {
		return nil, &ResourceError{Resource: "adapter " + name, Code: errnoOf(callErr)}
	}
	return npcapHandle(r), nil
}

func (NpcapDriver) CloseAdapter(h DeviceHandle) {
	_, _, _ = procPacketCloseAdapter.Call(uintptr(h.(npcapHandle)))
}

func (NpcapDriver) SetHardwareFilter(h DeviceHandle, mode FilterMode) error {
	r, _, callErr := procPacketSetHwFilter.Call(uintptr(h.(npcapHandle)), uintptr(mode))
	if r == 0 {
		return &DriverError{Op: "PacketSetHwFilter", Code: errnoOf(callErr)}
	}
	return nil
}

func (NpcapDriver) SetKernelBufferSize(h DeviceHandle, bytes int) error {
	r, _, callErr := procPacketSetBuff.Call(uintptr(h.(npcapHandle)), uintptr(bytes))
	if r == 0 {
		return &DriverError{Op: "PacketSetBuff", Code: errnoOf(callErr)}
	}
	return nil
}

func (NpcapDriver) SetImmediateDelivery(h DeviceHandle, on bool) error {
	min := uintptr(minToCopyDefault)
	if on {
		min = 1
	}
	r, _, callErr := procPacketSetMinToCopy.Call(uintptr(h.(npcapHandle)), min)
	if r == 0 {
		return &DriverError{Op: "PacketSetMinToCopy", Code: errnoOf(callErr)}
	}
	return nil
}

func (NpcapDriver) AllocateDescriptor() (Descriptor, error) {
	r, _, callErr := procPacketAllocatePacket.Call()
	if r == 0 {
		return nil, &ResourceError{Resource: "packet descriptor", Code: errnoOf(callErr)}
	}
	return &npcapDescriptor{pkt: (*npcapPacket)(unsafe.Pointer(r))}, nil
}

func (NpcapDriver) BindDescriptor(d Descriptor, buf []byte) {
	nd := d.(*npcapDescriptor)
	nd.buf = buf
	var base uintptr
	if len(buf) > 0 {
		base = uintptr(unsafe.Pointer(&buf[0]))
	}
	_, _, _ = procPacketInitPacket.Call(uintptr(unsafe.Pointer(nd.pkt)), base, uintptr(len(buf)))
}

func (NpcapDriver) FreeDescriptor(d Descriptor) {
	nd := d.(*npcapDescriptor)
	_, _, _ = procPacketFreePacket.Call(uintptr(unsafe.Pointer(nd.pkt)))
	nd.buf = nil
}

func (NpcapDriver) Transmit(h DeviceHandle, d Descriptor, sync bool) error {
	nd := d.(*npcapDescriptor)
	r, _, callErr := procPacketSendPacket.Call(
		uintptr(h.(npcapHandle)), uintptr(unsafe.Pointer(nd.pkt)), boolArg(sync))
	if r == 0 {
		return &DriverError{Op: "PacketSendPacket", Code: errnoOf(callErr)}
	}
	return nil
}

func (NpcapDriver) Receive(h DeviceHandle, d Descriptor, sync bool) error {
	nd := d.(*npcapDescriptor)
	r, _, callErr := procPacketReceivePacket.Call(
		uintptr(h.(npcapHandle)), uintptr(unsafe.Pointer(nd.pkt)), boolArg(sync))
	if r == 0 {
		return &DriverError{Op: "PacketReceivePacket", Code: errnoOf(callErr)}
	}
	return nil
}
