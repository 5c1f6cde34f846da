package packet

import "go.emberproxy.dev/ember/pkg/codec"

// Disconnect kicks a client before login completes. The reason is a
// plain-text chat component (spec.md §1 Non-goals excludes full chat
// component construction; a {"text": "..."} object round-trips fine
// with vanilla clients).
type Disconnect struct {
	ReasonJSON string
}

// DisconnectPacketID differs between login (0x00) and play (varies by
// protocol); the proxy only ever disconnects pre-login.
const DisconnectPacketID int32 = 0x00

func (d *Disconnect) Encode() []byte {
	return WriteString(nil, d.ReasonJSON)
}

func (d *Disconnect) ToPacket() *codec.Packet {
	return &codec.Packet{ID: DisconnectPacketID, Data: d.Encode()}
}

// NewTextDisconnect builds a Disconnect from a plain legacy-formatted
// message.
func NewTextDisconnect(message string) *Disconnect {
	return &Disconnect{ReasonJSON: `{"text":"` + jsonEscape(message) + `"}`}
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s)+4)
	for _, r := range s {
		switch r {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, string(r)...)
		}
	}
	return string(out)
}
