// Package proxyproto implements PROXY protocol v1 (text) and v2
// (binary) header parsing and building, as specified by HAProxy and
// required by spec.md §4.L for both receiving real client addresses
// behind a load balancer and forwarding them on to backends.
package proxyproto

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

var v2Signature = []byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

var v1Prefix = []byte("PROXY ")

// Header is a parsed PROXY protocol header, version-agnostic.
type Header struct {
	Version int // 1 or 2
	SrcAddr net.IP
	DstAddr net.IP
	SrcPort uint16
	DstPort uint16
	// Unknown is true for "PROXY UNKNOWN" (v1) or a LOCAL command
	// (v2), meaning no address information was carried.
	Unknown bool
}

// RemoteAddr returns the header's source address/port as a net.TCPAddr,
// or nil if Unknown.
func (h *Header) RemoteAddr() *net.TCPAddr {
	if h == nil || h.Unknown || h.SrcAddr == nil {
		return nil
	}
	return &net.TCPAddr{IP: h.SrcAddr, Port: int(h.SrcPort)}
}

// Detect peeks at br to decide whether a PROXY protocol header is
// present and, if so, parses and consumes it, bounded by deadline
// (spec.md §4.L: "bounded peek within a configurable timeout,
// default 5 seconds"). A nil header with a nil error means no PROXY
// header was present and br is unconsumed.
func Detect(ctx context.Context, conn net.Conn, br *bufio.Reader, timeout time.Duration) (*Header, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("proxyproto: setting read deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	peek, err := br.Peek(16)
	if err != nil {
		peek, err = br.Peek(6)
		if err != nil {
			return nil, nil
		}
	}

	switch {
	case len(peek) >= 12 && bytes.Equal(peek[:12], v2Signature):
		return parseV2(br)
	case len(peek) >= 6 && bytes.Equal(peek[:6], v1Prefix):
		return parseV1(br)
	default:
		return nil, nil
	}
}

func parseV1(br *bufio.Reader) (*Header, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("proxyproto v1: reading header line: %w", err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("proxyproto v1: header missing CRLF terminator")
	}

	fields := strings.Split(strings.TrimRight(string(line), "\r\n"), " ")
	if len(fields) == 2 && fields[1] == "UNKNOWN" {
		return &Header{Version: 1, Unknown: true}, nil
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("proxyproto v1: expected 6 fields, got %d", len(fields))
	}

	srcPort, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("proxyproto v1: invalid source port: %w", err)
	}
	dstPort, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("proxyproto v1: invalid dest port: %w", err)
	}

	src := net.ParseIP(fields[2])
	dst := net.ParseIP(fields[3])
	if src == nil || dst == nil {
		return nil, fmt.Errorf("proxyproto v1: unparseable address fields")
	}

	return &Header{
		Version: 1,
		SrcAddr: src,
		DstAddr: dst,
		SrcPort: uint16(srcPort),
		DstPort: uint16(dstPort),
	}, nil
}

func parseV2(br *bufio.Reader) (*Header, error) {
	fixed := make([]byte, 16)
	if _, err := io.ReadFull(br, fixed); err != nil {
		return nil, fmt.Errorf("proxyproto v2: reading fixed header: %w", err)
	}

	verCmd := fixed[12]
	if ver := verCmd >> 4; ver != 2 {
		return nil, fmt.Errorf("proxyproto v2: unsupported version %d", ver)
	}
	command := verCmd & 0x0F

	famProto := fixed[13]
	family := famProto >> 4

	addrLen := binary.BigEndian.Uint16(fixed[14:16])
	addrBlock := make([]byte, addrLen)
	if addrLen > 0 {
		if _, err := io.ReadFull(br, addrBlock); err != nil {
			return nil, fmt.Errorf("proxyproto v2: reading address block: %w", err)
		}
	}

	if command == 0x0 { // LOCAL: health check, no address info
		return &Header{Version: 2, Unknown: true}, nil
	}

	h := &Header{Version: 2}
	switch family {
	case 0x1: // AF_INET
		if addrLen < 12 {
			return nil, fmt.Errorf("proxyproto v2: short IPv4 address block")
		}
		h.SrcAddr = net.IP(addrBlock[0:4])
		h.DstAddr = net.IP(addrBlock[4:8])
		h.SrcPort = binary.BigEndian.Uint16(addrBlock[8:10])
		h.DstPort = binary.BigEndian.Uint16(addrBlock[10:12])
	case 0x2: // AF_INET6
		if addrLen < 36 {
			return nil, fmt.Errorf("proxyproto v2: short IPv6 address block")
		}
		h.SrcAddr = net.IP(addrBlock[0:16])
		h.DstAddr = net.IP(addrBlock[16:32])
		h.SrcPort = binary.BigEndian.Uint16(addrBlock[32:34])
		h.DstPort = binary.BigEndian.Uint16(addrBlock[34:36])
	default:
		h.Unknown = true
	}
	return h, nil
}

// BuildV1 renders a PROXY protocol v1 text header for the given
// endpoints (spec.md §4.L: the proxy emits a header toward backends
// when send_proxy_protocol is set).
func BuildV1(src, dst *net.TCPAddr) []byte {
	if src == nil || dst == nil {
		return []byte("PROXY UNKNOWN\r\n")
	}
	proto := "TCP4"
	if src.IP.To4() == nil {
		proto = "TCP6"
	}
	return []byte(fmt.Sprintf("PROXY %s %s %s %d %d\r\n", proto, src.IP.String(), dst.IP.String(), src.Port, dst.Port))
}

// BuildV2 renders a PROXY protocol v2 binary header for the given
// endpoints, falling back to a LOCAL command when either address is
// not a TCP address.
func BuildV2(src, dst *net.TCPAddr) []byte {
	if src == nil || dst == nil {
		header := make([]byte, 16)
		copy(header[0:12], v2Signature)
		header[12] = 0x20 // version 2, LOCAL
		return header
	}

	srcIP4, dstIP4 := src.IP.To4(), dst.IP.To4()
	if srcIP4 != nil && dstIP4 != nil {
		header := make([]byte, 16+12)
		copy(header[0:12], v2Signature)
		header[12] = 0x21 // version 2, PROXY
		header[13] = 0x11 // AF_INET, STREAM
		binary.BigEndian.PutUint16(header[14:16], 12)
		copy(header[16:20], srcIP4)
		copy(header[20:24], dstIP4)
		binary.BigEndian.PutUint16(header[24:26], uint16(src.Port))
		binary.BigEndian.PutUint16(header[26:28], uint16(dst.Port))
		return header
	}

	srcIP6, dstIP6 := src.IP.To16(), dst.IP.To16()
	header := make([]byte, 16+36)
	copy(header[0:12], v2Signature)
	header[12] = 0x21
	header[13] = 0x21 // AF_INET6, STREAM
	binary.BigEndian.PutUint16(header[14:16], 36)
	copy(header[16:32], srcIP6)
	copy(header[32:48], dstIP6)
	binary.BigEndian.PutUint16(header[48:50], uint16(src.Port))
	binary.BigEndian.PutUint16(header[50:52], uint16(dst.Port))
	return header
}

// Build renders either a v1 or v2 header according to version.
func Build(version int, src, dst *net.TCPAddr) ([]byte, error) {
	switch version {
	case 1:
		return BuildV1(src, dst), nil
	case 2:
		return BuildV2(src, dst), nil
	default:
		return nil, fmt.Errorf("proxyproto: unsupported version %d", version)
	}
}
