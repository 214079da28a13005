package datalink

/*
 Windows has no raw-socket capture path; frames go through the Npcap (or
 legacy WinPcap) packet driver instead, reached from user mode via
 Packet.dll. Some good references:
  Driver API: https://www.winpcap.org/docs/docs_412/html/group__packetapi.html
  Npcap guide: https://npcap.com/guide/npcap-devguide.html
 Received frames arrive batched in one read, each prefixed with a
 word-aligned bpf_hdr-style record header:
  https://www.winpcap.org/docs/docs_412/html/structbpf__hdr.html

 Adapter names are the NPF device form, e.g. \Device\NPF_{GUID}. Interfaces
 reports the OS view of the adapters; the mapping to NPF names is done by
 the caller.
*/
