package capture

import (
	"encoding/binary"
	"net"

	"qris/internal/correlate"
	"qris/internal/qerr"
)

const (
	ethTypeIPv4  = 0x0800
	ethTypeIPv6  = 0x86dd
	ethHeaderLen = 14

	ipProtoTCP = 6

	tlsContentChangeCipherSpec = 20
	tlsContentHandshake        = 22
	tlsContentApplicationData  = 23
	tlsHandshakeClientHello    = 1

	httpsPort = 443
)

// decoded is one walked frame's TCP-and-above view.
type decoded struct {
	src, dst string
	sport    int
	dport    int
	seq      uint32
	payload  []byte
}

// decodeFrame walks an Ethernet frame down to its TCP payload. ok is
// false for anything that is not an IPv4/IPv6-over-TCP frame.
func decodeFrame(frame []byte) (decoded, bool) {
	if len(frame) < ethHeaderLen {
		return decoded{}, false
	}
	etherType := binary.BigEndian.Uint16(frame[12:14])
	l3 := frame[ethHeaderLen:]

	var (
		src, dst net.IP
		proto    byte
		l4       []byte
	)
	switch etherType {
	case ethTypeIPv4:
		if len(l3) < 20 {
			return decoded{}, false
		}
		ihl := int(l3[0]&0x0f) * 4
		if ihl < 20 || len(l3) < ihl {
			return decoded{}, false
		}
		proto = l3[9]
		src = net.IP(l3[12:16])
		dst = net.IP(l3[16:20])
		l4 = l3[ihl:]
	case ethTypeIPv6:
		if len(l3) < 40 {
			return decoded{}, false
		}
		proto = l3[6]
		src = net.IP(l3[8:24])
		dst = net.IP(l3[24:40])
		l4 = l3[40:]
	default:
		return decoded{}, false
	}

	if proto != ipProtoTCP {
		return decoded{}, false
	}
	if len(l4) < 20 {
		return decoded{}, false
	}
	sport := int(binary.BigEndian.Uint16(l4[0:2]))
	dport := int(binary.BigEndian.Uint16(l4[2:4]))
	seq := binary.BigEndian.Uint32(l4[4:8])
	dataOffset := int(l4[12]>>4) * 4
	if dataOffset < 20 || len(l4) < dataOffset {
		return decoded{}, false
	}

	return decoded{
		src:     src.String(),
		dst:     dst.String(),
		sport:   sport,
		dport:   dport,
		seq:     seq,
		payload: l4[dataOffset:],
	}, true
}

// isClientHello reports whether payload begins a TLS ClientHello
// handshake record.
func isClientHello(payload []byte) bool {
	return len(payload) >= 6 && payload[0] == tlsContentHandshake && payload[5] == tlsHandshakeClientHello
}

// DetectServerName scans path for the first TLS ClientHello bound for
// port 443 and returns the raw handshake bytes containing the SNI
// extension, for siteprofile.Registry.DetectByServerName. Grounded on
// packets.py::_detect_website.
func DetectServerName(path string) ([]byte, error) {
	r, closer, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	for {
		raw, err := r.Next()
		if err != nil {
			break
		}
		d, ok := decodeFrame(raw.Data)
		if !ok || d.dport != httpsPort {
			continue
		}
		if isClientHello(d.payload) {
			return d.payload, nil
		}
	}
	return nil, qerr.ErrUnsupportedSite
}

// filterConversation returns the set of (src,dst) IP pairs whose TLS
// ClientHello named serverName, for conversation filtering. Grounded
// on packets.py::_filter_conv.
func filterConversation(path, serverName string) (map[[2]string]bool, error) {
	r, closer, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	needle := []byte(serverName)
	tuples := make(map[[2]string]bool)
	for {
		raw, err := r.Next()
		if err != nil {
			break
		}
		d, ok := decodeFrame(raw.Data)
		if !ok || d.dport != httpsPort {
			continue
		}
		if isClientHello(d.payload) && containsBytes(d.payload, needle) {
			tuples[[2]string{d.src, d.dst}] = true
		}
	}
	if len(tuples) == 0 {
		return nil, qerr.Wrap(qerr.ErrUnsupportedSite, "no conversation matched server name %q", serverName)
	}
	return tuples, nil
}

func containsBytes(haystack, needle []byte) bool {
	if len(needle) == 0 {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// LoadObservations reads path and returns the filtered, deduplicated
// TLS application-data observations bound for serverName, sized by TLS
// record length rather than TCP segment length and stripped of
// retransmissions/duplicates per source port. Grounded on
// packets.py::_load_pcap.
func LoadObservations(path, serverName string) ([]correlate.Observation, error) {
	tuples, err := filterConversation(path, serverName)
	if err != nil {
		return nil, err
	}

	r, closer, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var firstTS int64 = -1
	portSeq := make(map[int]uint32)
	var obs []correlate.Observation

	for {
		raw, err := r.Next()
		if err != nil {
			break
		}
		if firstTS < 0 {
			firstTS = raw.TimestampUS
		}
		timeMS := (raw.TimestampUS - firstTS) / 1000

		d, ok := decodeFrame(raw.Data)
		if !ok {
			continue
		}
		if !tuples[[2]string{d.src, d.dst}] {
			continue
		}
		if d.dport != httpsPort {
			continue
		}
		if len(d.payload) == 0 || d.payload[0] != tlsContentApplicationData {
			continue
		}

		if last, seen := portSeq[d.sport]; seen {
			if d.seq <= last {
				continue
			}
		}
		portSeq[d.sport] = d.seq

		if len(d.payload) < 5 {
			continue
		}
		size := int32(binary.BigEndian.Uint16(d.payload[3:5]))

		obs = append(obs, correlate.Observation{
			TimeMS:    timeMS,
			Src:       d.src,
			Dst:       d.dst,
			SPort:     d.sport,
			SizeBytes: size,
		})
	}

	return obs, nil
}
