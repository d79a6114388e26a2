package event

import (
	"sort"

	"github.com/tinylib/msgp/msgp"
)

var (
	_ msgp.Marshaler   = (*Context)(nil)
	_ msgp.Unmarshaler = (*Context)(nil)
	_ msgp.Sizer       = (*Context)(nil)
	_ msgp.Marshaler   = (*Breadcrumb)(nil)
	_ msgp.Unmarshaler = (*Breadcrumb)(nil)
	_ msgp.Sizer       = (*Breadcrumb)(nil)
)

// contextFields is the number of top-level keys in an encoded Context.
const contextFields = 9

// MarshalMsg implements msgp.Marshaler. The nine keys are always written in
// the same order.
func (z *Context) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, contextFields)

	o = msgp.AppendString(o, "release")
	o = appendOptString(o, z.Release)

	o = msgp.AppendString(o, "level")
	o = msgp.AppendInt(o, int(z.Level))

	o = msgp.AppendString(o, "user")
	if len(z.User) == 0 {
		o = msgp.AppendNil(o)
	} else {
		o = appendStringMap(o, z.User)
	}

	o = msgp.AppendString(o, "dist")
	o = appendOptString(o, z.Dist)
	o = msgp.AppendString(o, "environment")
	o = appendOptString(o, z.Environment)
	o = msgp.AppendString(o, "transaction")
	o = appendOptString(o, z.Transaction)

	o = msgp.AppendString(o, "tags")
	o = appendStringMap(o, z.Tags)
	o = msgp.AppendString(o, "extra")
	o = appendStringMap(o, z.Extra)

	o = msgp.AppendString(o, "fingerprint")
	o = msgp.AppendArrayHeader(o, uint32(len(z.Fingerprint)))
	for _, part := range z.Fingerprint {
		o = msgp.AppendString(o, part)
	}
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler. Unknown keys are skipped so
// newer writers stay readable.
func (z *Context) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var n uint32
	n, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}
	*z = *NewContext()
	for n > 0 {
		n--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "release":
			z.Release, bts, err = readOptString(bts)
		case "level":
			var lvl int
			lvl, bts, err = msgp.ReadIntBytes(bts)
			z.Level = Level(lvl)
		case "user":
			z.User, bts, err = readStringMap(bts)
		case "dist":
			z.Dist, bts, err = readOptString(bts)
		case "environment":
			z.Environment, bts, err = readOptString(bts)
		case "transaction":
			z.Transaction, bts, err = readOptString(bts)
		case "tags":
			z.Tags, bts, err = readStringMap(bts)
		case "extra":
			z.Extra, bts, err = readStringMap(bts)
		case "fingerprint":
			z.Fingerprint, bts, err = readStringArray(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound of the encoded size.
func (z *Context) Msgsize() (s int) {
	s = msgp.MapHeaderSize
	s += 8 + optStringSize(z.Release)
	s += 6 + msgp.IntSize
	s += 5 + stringMapSize(z.User)
	s += 5 + optStringSize(z.Dist)
	s += 12 + optStringSize(z.Environment)
	s += 12 + optStringSize(z.Transaction)
	s += 5 + stringMapSize(z.Tags)
	s += 6 + stringMapSize(z.Extra)
	s += 12 + msgp.ArrayHeaderSize
	for _, part := range z.Fingerprint {
		s += msgp.StringPrefixSize + len(part)
	}
	return s
}

// MarshalMsg implements msgp.Marshaler as a two-entry map {message, level}.
func (z *Breadcrumb) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "message")
	o = appendOptString(o, z.Message)
	o = msgp.AppendString(o, "level")
	o = appendOptString(o, z.Level)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (z *Breadcrumb) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var n uint32
	n, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}
	*z = Breadcrumb{}
	for n > 0 {
		n--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "message":
			z.Message, bts, err = readOptString(bts)
		case "level":
			z.Level, bts, err = readOptString(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound of the encoded size.
func (z *Breadcrumb) Msgsize() int {
	return msgp.MapHeaderSize + 8 + optStringSize(z.Message) + 6 + optStringSize(z.Level)
}

func appendOptString(o []byte, s *string) []byte {
	if s == nil {
		return msgp.AppendNil(o)
	}
	return msgp.AppendString(o, *s)
}

// appendStringMap writes m with sorted keys so equal maps encode identically.
func appendStringMap(o []byte, m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	o = msgp.AppendMapHeader(o, uint32(len(keys)))
	for _, k := range keys {
		o = msgp.AppendString(o, k)
		o = msgp.AppendString(o, m[k])
	}
	return o
}

func readOptString(bts []byte) (*string, []byte, error) {
	if msgp.IsNil(bts) {
		bts, err := msgp.ReadNilBytes(bts)
		return nil, bts, err
	}
	s, bts, err := msgp.ReadStringBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	return &s, bts, nil
}

// readStringMap decodes a map of strings; nil decodes to an empty map.
// Nil values inside the map are dropped.
func readStringMap(bts []byte) (map[string]string, []byte, error) {
	m := map[string]string{}
	if msgp.IsNil(bts) {
		bts, err := msgp.ReadNilBytes(bts)
		return m, bts, err
	}
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return m, bts, err
	}
	for ; n > 0; n-- {
		var k string
		var v *string
		k, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return m, bts, err
		}
		v, bts, err = readOptString(bts)
		if err != nil {
			return m, bts, msgp.WrapError(err, k)
		}
		if v != nil {
			m[k] = *v
		}
	}
	return m, bts, nil
}

func readStringArray(bts []byte) ([]string, []byte, error) {
	out := []string{}
	if msgp.IsNil(bts) {
		bts, err := msgp.ReadNilBytes(bts)
		return out, bts, err
	}
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return out, bts, err
	}
	for i := uint32(0); i < n; i++ {
		var s string
		s, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return out, bts, msgp.WrapError(err, i)
		}
		out = append(out, s)
	}
	return out, bts, nil
}

func optStringSize(s *string) int {
	if s == nil {
		return msgp.NilSize
	}
	return msgp.StringPrefixSize + len(*s)
}

func stringMapSize(m map[string]string) int {
	s := msgp.MapHeaderSize
	for k, v := range m {
		s += msgp.StringPrefixSize + len(k) + msgp.StringPrefixSize + len(v)
	}
	return s
}
