package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/chatmesh/internal/common"
)

// HeaderSize is the length of the big-endian payload length prefix.
const HeaderSize = 4

type variant struct {
	required []string
	decode   func([]byte) (Envelope, error)
}

func decodeAs[T Envelope](b []byte) (Envelope, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var variants = map[Kind]variant{
	KindLogin:       {[]string{"id", "password"}, decodeAs[Login]},
	KindLoginAck:    {[]string{"errno"}, decodeAs[LoginAck]},
	KindLogout:      {[]string{"id"}, decodeAs[Logout]},
	KindRegister:    {[]string{"name", "password"}, decodeAs[Register]},
	KindRegisterAck: {[]string{"errno"}, decodeAs[RegisterAck]},
	KindOneChat:     {[]string{"id", "name", "to", "msg", "time"}, decodeAs[OneChat]},
	KindAddFriend:   {[]string{"id", "friend_id"}, decodeAs[AddFriend]},
	KindCreateGroup: {[]string{"id", "groupname", "groupdesc"}, decodeAs[CreateGroup]},
	KindAddGroup:    {[]string{"id", "group_id"}, decodeAs[AddGroup]},
	KindGroupChat:   {[]string{"id", "name", "group_id", "msg", "time"}, decodeAs[GroupChat]},
}

// Marshal returns the unframed JSON payload for e with "msgid" as the
// first field. This is the form stored in the offline queue and published
// to the broker.
func Marshal(e Envelope) ([]byte, error) {
	if e == nil || !e.Kind().Known() {
		return nil, fmt.Errorf("%w: cannot marshal %v", common.ErrMalformedEnvelope, e)
	}
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s is not an object", common.ErrMalformedEnvelope, e.Kind())
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 16)
	buf.WriteString(`{"msgid":`)
	buf.WriteString(strconv.Itoa(int(e.Kind())))
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// Unmarshal parses an unframed payload. It fails with
// common.ErrMalformedEnvelope when the payload is not a JSON object, has
// no msgid, names an unknown kind or lacks a field the kind requires.
func Unmarshal(payload []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}

	raw, ok := fields["msgid"]
	if !ok {
		return nil, fmt.Errorf("%w: missing msgid", common.ErrMalformedEnvelope)
	}
	var kind Kind
	if err := json.Unmarshal(raw, &kind); err != nil {
		return nil, fmt.Errorf("%w: bad msgid %s", common.ErrMalformedEnvelope, raw)
	}

	v, ok := variants[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown msgid %d", common.ErrMalformedEnvelope, kind)
	}
	for _, name := range v.required {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: %s without %q", common.ErrMalformedEnvelope, kind, name)
		}
	}

	env, err := v.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrMalformedEnvelope, kind, err)
	}
	return env, nil
}

// Frame prefixes payload with its big-endian length.
func Frame(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// Encode marshals e and frames the result.
func Encode(e Envelope) ([]byte, error) {
	payload, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(payload), nil
}

// Decode is the inverse of Encode. The prefix must match the number of
// bytes that follow it exactly.
func Decode(frame []byte) (Envelope, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: short frame (%d bytes)", common.ErrMalformedEnvelope, len(frame))
	}
	n := binary.BigEndian.Uint32(frame)
	if int64(n) != int64(len(frame)-HeaderSize) {
		return nil, fmt.Errorf("%w: prefix says %d, got %d", common.ErrMalformedEnvelope, n, len(frame)-HeaderSize)
	}
	return Unmarshal(frame[HeaderSize:])
}
