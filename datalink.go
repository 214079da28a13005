package datalink

import (
	"fmt"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ChannelType selects the layer a channel speaks.
type ChannelType int

const (
	// Layer2 exchanges whole link-layer frames; the adapter is opened with
	// a promiscuous hardware filter.
	Layer2 ChannelType = iota
	// Layer3 would exchange network-layer packets. This backend does not
	// provide it.
	Layer3
)

func (t ChannelType) String() string {
	switch t {
	case Layer2:
		return "Layer2"
	case Layer3:
		return "Layer3"
	}
	return fmt.Sprintf("ChannelType(%d)", int(t))
}

// Config carries the channel options. The zero value opens a Layer2 channel
// with default buffer sizes.
type Config struct {
	// ReadBufferSize is the size in bytes of the receive staging buffer and
	// of the kernel buffer requested from the driver. Zero means
	// DefaultBufferSize.
	ReadBufferSize int

	// WriteBufferSize is the size in bytes of the send staging buffer. Zero
	// means DefaultBufferSize.
	WriteBufferSize int

	// Mode selects the channel layer.
	Mode ChannelType
}

func (c Config) withDefaults() Config {
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = DefaultBufferSize
	}
	return c
}

// Packet is a single captured frame delivered by Receiver.Listen.
type Packet struct {
	B     []byte
	Info  gopacket.CaptureInfo
	Error error
}

// adapter owns the opened device handle on behalf of the Sender and Receiver
// minted together. The driver close runs exactly once, when the last of the
// two releases its reference.
type adapter struct {
	drv    Driver
	handle DeviceHandle
	refs   atomic.Int32
}

func (a *adapter) release() {
	if a.refs.Add(-1) == 0 {
		a.drv.CloseAdapter(a.handle)
	}
}

// frameBuffer pairs one driver descriptor with the backing byte buffer it is
// bound to. The buffer must outlive the descriptor, so the struct keeps both
// and frees only the descriptor.
type frameBuffer struct {
	drv  Driver
	desc Descriptor
	buf  []byte
}

func newFrameBuffer(drv Driver, buf []byte) (*frameBuffer, error) {
	desc, err := drv.AllocateDescriptor()
	if err != nil {
		return nil, err
	}
	drv.BindDescriptor(desc, buf)
	return &frameBuffer{drv: drv, desc: desc, buf: buf}, nil
}

func (b *frameBuffer) free() {
	b.drv.FreeDescriptor(b.desc)
}

// Open opens a datalink channel on the named interface through the
// platform's packet driver and returns its sending and receiving halves.
// The halves share the underlying adapter, which closes once both have been
// closed; either half may outlive the other.
func Open(ifc Interface, cfg Config) (*Sender, *Receiver, error) {
	drv, err := defaultDriver()
	if err != nil {
		return nil, nil, err
	}
	return OpenWith(drv, ifc, cfg)
}

// OpenWith is Open against an explicit driver backend.
func OpenWith(drv Driver, ifc Interface, cfg Config) (*Sender, *Receiver, error) {
	cfg = cfg.withDefaults()
	if cfg.Mode != Layer2 {
		return nil, nil, errors.WithMessagef(ErrUnsupportedMode, "mode %v", cfg.Mode)
	}
	if cfg.ReadBufferSize < 0 || cfg.WriteBufferSize < 0 {
		return nil, nil, errors.Errorf("negative buffer size in config: read %d, write %d",
			cfg.ReadBufferSize, cfg.WriteBufferSize)
	}
	order, err := getEndianness()
	if err != nil {
		return nil, nil, err
	}

	logger := log.WithFields(log.Fields{
		"iface":       ifc.Name,
		"readBuffer":  cfg.ReadBufferSize,
		"writeBuffer": cfg.WriteBufferSize,
		"mode":        cfg.Mode,
	})
	logger.Debug("opening datalink channel")

	handle, err := drv.OpenAdapter(ifc.Name)
	if err != nil {
		return nil, nil, err
	}
	ok := false
	defer func() {
		if !ok {
			drv.CloseAdapter(handle)
		}
	}()

	if err := drv.SetHardwareFilter(handle, FilterPromiscuous); err != nil {
		return nil, nil, err
	}
	if err := drv.SetKernelBufferSize(handle, cfg.ReadBufferSize); err != nil {
		return nil, nil, err
	}
	// The driver's read timeout stays at its default: setting one makes the
	// receive call fail outright on some adapters, so receives simply block
	// until data arrives.
	if err := drv.SetImmediateDelivery(handle, true); err != nil {
		return nil, nil, err
	}
	logger.Debug("adapter configured")

	readBuf := make([]byte, cfg.ReadBufferSize)
	rfb, err := newFrameBuffer(drv, readBuf)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if !ok {
			rfb.free()
		}
	}()
	writeBuf := make([]byte, cfg.WriteBufferSize)
	wfb, err := newFrameBuffer(drv, writeBuf)
	if err != nil {
		return nil, nil, err
	}

	ad := &adapter{drv: drv, handle: handle}
	ad.refs.Store(2)
	s := &Sender{adapter: ad, fb: wfb}
	r := &Receiver{
		adapter: ad,
		fb:      rfb,
		order:   order,
		queue:   newFrameQueue(len(readBuf)),
		index:   ifc.Index,
	}
	ok = true
	logger.Debug("datalink channel open")
	return s, r, nil
}
