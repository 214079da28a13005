package datalink

import (
	"net"

	"github.com/pkg/errors"
)

// Interface describes one capturable network adapter. Name is handed to the
// driver's open call as-is; the Windows packet driver expects its NPF device
// name there, e.g. `\Device\NPF_{GUID}`, not the friendly adapter name.
type Interface struct {
	Index        int
	Name         string
	Description  string
	HardwareAddr net.HardwareAddr
	Addrs        []net.IP
}

// Interfaces lists the system's network interfaces as channel-openable
// descriptors.
func Interfaces() ([]Interface, error) {
	system, err := net.Interfaces()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out := make([]Interface, 0, len(system))
	for i := range system {
		out = append(out, fromNetInterface(&system[i]))
	}
	return out, nil
}

// InterfaceByName returns the descriptor for one named interface.
func InterfaceByName(name string) (Interface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return Interface{}, errors.WithStack(err)
	}
	return fromNetInterface(ifc), nil
}

func fromNetInterface(ifc *net.Interface) Interface {
	out := Interface{
		Index:        ifc.Index,
		Name:         ifc.Name,
		HardwareAddr: ifc.HardwareAddr,
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return out
	}
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			out.Addrs = append(out.Addrs, v.IP)
		case *net.IPAddr:
			out.Addrs = append(out.Addrs, v.IP)
		}
	}
	return out
}
