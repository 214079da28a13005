package datalink

// FilterMode selects the hardware filter class applied to an opened adapter,
// using the NDIS packet type values.
type FilterMode uint32

// DeviceHandle is an opaque reference to an opened capture device. Only the
// Driver that issued it can interpret it.
type DeviceHandle interface{}

// Descriptor is a driver-side packet descriptor bound to a fixed backing
// buffer. After binding, the length field holds the buffer capacity; a
// transmit sends length bytes of the buffer, and a receive reports the
// delivered byte count through BytesReceived.
type Descriptor interface {
	Length() int
	SetLength(n int)
	BytesReceived() int
}

// Driver is the capability surface of a native packet-capture driver. Every
// method that can fail returns a *DriverError or *ResourceError built at the
// call site, carrying the platform error code; callers never consult ambient
// last-error state.
//
// Transmit and Receive are synchronous and may block. Implementations must
// tolerate concurrent Transmit and Receive on one adapter as long as the two
// calls use distinct descriptors.
type Driver interface {
	// OpenAdapter opens the named adapter for capture and injection.
	OpenAdapter(name string) (DeviceHandle, error)

	// CloseAdapter releases an adapter. Called exactly once per successful
	// OpenAdapter.
	CloseAdapter(h DeviceHandle)

	// SetHardwareFilter applies a hardware filter class to the adapter.
	SetHardwareFilter(h DeviceHandle, mode FilterMode) error

	// SetKernelBufferSize resizes the driver's kernel-side receive buffer.
	SetKernelBufferSize(h DeviceHandle, bytes int) error

	// SetImmediateDelivery, when on, makes the driver complete a receive as
	// soon as any data arrives instead of waiting to fill the buffer.
	SetImmediateDelivery(h DeviceHandle, on bool) error

	// AllocateDescriptor obtains a fresh, unbound packet descriptor.
	AllocateDescriptor() (Descriptor, error)

	// BindDescriptor binds a descriptor to its backing buffer and records
	// the buffer capacity in the descriptor's length field. The descriptor
	// retains the buffer until FreeDescriptor; the caller must keep buf
	// alive for that whole time.
	BindDescriptor(d Descriptor, buf []byte)

	// FreeDescriptor releases a descriptor. The backing buffer is owned by
	// the caller and survives.
	FreeDescriptor(d Descriptor)

	// Transmit sends the first length-field bytes of the descriptor's
	// buffer on the adapter.
	Transmit(h DeviceHandle, d Descriptor, sync bool) error

	// Receive blocks until the driver fills the descriptor's buffer with
	// framed records, then records the delivered byte count.
	Receive(h DeviceHandle, d Descriptor, sync bool) error
}
