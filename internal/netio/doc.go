// Package netio provides the socket layer for the Geneve data-plane
// endpoint: a raw IPv4 data socket (IP_HDRINCL) used in raw-socket mode,
// a UDP-bound data socket used in udp-bind mode, a port-announcing
// socket that keeps the kernel from answering unmatched Geneve
// datagrams with ICMP port-unreachable, a TCP health responder, and the
// poll(2)-based receive loop that multiplexes across all of them.
//
// Linux-specific implementation uses golang.org/x/sys/unix for raw
// socket options (IP_HDRINCL) and the eventfd-based
// shutdown signal used to interrupt a blocked poll(2) call.
package netio
