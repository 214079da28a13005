package datalink

// link types, compliant with pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
const (
	LinkTypeNull     uint32 = 0x0
	LinkTypeEthernet uint32 = 0x01
)

// NDIS packet type classes accepted by Driver.SetHardwareFilter, values from
// ntddndis.h.
const (
	FilterDirected      FilterMode = 0x0001
	FilterMulticast     FilterMode = 0x0002
	FilterAllMulticast  FilterMode = 0x0004
	FilterBroadcast     FilterMode = 0x0008
	FilterSourceRouting FilterMode = 0x0010
	FilterPromiscuous   FilterMode = 0x0020
)

// DefaultBufferSize is applied to either buffer size a Config leaves at zero.
const DefaultBufferSize = 4096
