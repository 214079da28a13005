package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/packetlink/go-datalink"
)

var (
	debug       bool
	iface       string
	bufferSize  int
	writeFile   string
	timeout     time.Duration
	injectCount int
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "datalink",
	Short: "Capture frames from a network adapter through the native packet driver",
	Long:  `Capture frames from a network adapter through the native packet driver`,
	Run: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		ifc := resolveInterface(iface)

		fmt.Printf("capturing from interface %s\n", ifc.Name)
		tx, rx, err := datalink.Open(ifc, datalink.Config{ReadBufferSize: bufferSize, WriteBufferSize: bufferSize})
		if err != nil {
			log.Fatal(err)
		}
		// capture needs only the receiving half
		tx.Close()
		defer rx.Close()

		var dump *pcapgo.Writer
		if writeFile != "" {
			f, err := os.Create(writeFile)
			if err != nil {
				log.Fatalf("cannot create dump file: %v", err)
			}
			defer f.Close()
			dump = pcapgo.NewWriter(f)
			if err := dump.WriteFileHeader(uint32(bufferSize), layers.LinkType(rx.LinkType())); err != nil {
				log.Fatalf("cannot write dump file header: %v", err)
			}
		}
		var deadline <-chan time.Time
		if timeout > 0 {
			deadline = time.After(timeout)
		}

		var count int
		packets := rx.Listen()
		for {
			select {
			case packet, ok := <-packets:
				if !ok {
					return
				}
				if packet.Error != nil {
					log.Fatalf("capture failed: %v", packet.Error)
				}
				if dump != nil {
					if err := dump.WritePacket(packet.Info, packet.B); err != nil {
						log.Fatalf("cannot write dump record: %v", err)
					}
				}
				processPacket(gopacket.NewPacket(packet.B, layers.LinkType(rx.LinkType()), gopacket.Default), count)
				count++
			case <-deadline:
				return
			}
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the capturable network interfaces",
	Run: func(cmd *cobra.Command, args []string) {
		ifcs, err := datalink.Interfaces()
		if err != nil {
			log.Fatal(err)
		}
		for _, ifc := range ifcs {
			fmt.Printf("%d: %s", ifc.Index, ifc.Name)
			if ifc.Description != "" {
				fmt.Printf(" (%s)", ifc.Description)
			}
			if len(ifc.HardwareAddr) > 0 {
				fmt.Printf(" [%s]", ifc.HardwareAddr)
			}
			for _, a := range ifc.Addrs {
				fmt.Printf(" %s", a)
			}
			fmt.Println()
		}
	},
}

var injectCmd = &cobra.Command{
	Use:   "inject <hex frame>",
	Short: "Inject a raw frame, given as hex bytes, on an interface",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		raw := strings.Join(args, "")
		raw = strings.ReplaceAll(raw, ":", "")
		frame, err := hex.DecodeString(raw)
		if err != nil {
			log.Fatalf("frame is not valid hex: %v", err)
		}
		ifc := resolveInterface(iface)

		tx, rx, err := datalink.Open(ifc, datalink.Config{ReadBufferSize: bufferSize, WriteBufferSize: bufferSize})
		if err != nil {
			log.Fatal(err)
		}
		// injection needs only the sending half
		rx.Close()
		defer tx.Close()
		for i := 0; i < injectCount; i++ {
			if err := tx.WritePacketData(frame); err != nil {
				log.Fatalf("inject failed: %v", err)
			}
		}
		fmt.Printf("injected %d frame(s) of %d bytes on %s\n", injectCount, len(frame), ifc.Name)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print lots of debugging messages")
	rootCmd.PersistentFlags().StringVarP(&iface, "interface", "i", "", "interface to capture from or inject on; an OS name, or a raw device name like \\Device\\NPF_{GUID}")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer-size", datalink.DefaultBufferSize, "size in bytes of the receive and send staging buffers")
	rootCmd.Flags().StringVarP(&writeFile, "write", "w", "", "also dump captured frames to the given pcap file")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "stop capturing after the given duration, e.g. 10s, 1m, 1h; default 0 means no timeout")
	injectCmd.Flags().IntVar(&injectCount, "count", 1, "number of copies of the frame to inject")
	rootCmd.AddCommand(listCmd, injectCmd)
}

// resolveInterface accepts either an OS interface name or a raw driver
// device name; raw names pass through with no OS metadata attached.
func resolveInterface(name string) datalink.Interface {
	ifc, err := datalink.InterfaceByName(name)
	if err != nil {
		log.Debugf("no OS interface %q, handing the name to the driver as-is: %v", name, err)
		return datalink.Interface{Name: name}
	}
	return ifc
}

func processPacket(packet gopacket.Packet, count int) {
	if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		fmt.Printf("%d: ethernet frame ", count)
		eth, _ := ethLayer.(*layers.Ethernet)
		fmt.Printf("From src %s to dst %s, type %s\n", eth.SrcMAC, eth.DstMAC, eth.EthernetType)
	}
	if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
		fmt.Printf("%d: ARP ", count)
		arp, _ := arpLayer.(*layers.ARP)
		fmt.Printf("From %s to %s\n", net.IP(arp.SourceProtAddress), net.IP(arp.DstProtAddress))
	}
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		fmt.Printf("%d: IP packet ", count)
		ip, _ := ipLayer.(*layers.IPv4)
		fmt.Printf("From src %s to dst %s\n", ip.SrcIP, ip.DstIP)
	}
	if ipLayer := packet.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		fmt.Printf("%d: IP packet ", count)
		ip, _ := ipLayer.(*layers.IPv6)
		fmt.Printf("From src %s to dst %s\n", ip.SrcIP, ip.DstIP)
	}
	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		fmt.Printf("%d: UDP packet ", count)
		udp, _ := udpLayer.(*layers.UDP)
		fmt.Printf("From src port %d to dst port %d\n", udp.SrcPort, udp.DstPort)
	}
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		fmt.Printf("%d: TCP packet ", count)
		tcp, _ := tcpLayer.(*layers.TCP)
		fmt.Printf("From src port %d to dst port %d\n", tcp.SrcPort, tcp.DstPort)
	}

	data := packet.Data()
	if len(data) > 50 {
		data = data[:50]
	}
	fmt.Printf("%d: frame size %d, first bytes %d\n", count, packet.Metadata().CaptureLength, data)
}
