package concept

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Value is the tagged union of all attribute-value payloads. The
// value-type tag travels with the payload even before it touches the
// wire — the type-annotation engine and expression compiler both need to
// peek a value's type without encoding it.
type Value struct {
	Type     ValueType
	Boolean  bool
	Integer  int64
	Double   float64
	Decimal  Decimal
	Date     int32 // days since the common era
	DateTime DateTime
	TZOffset int32 // minutes east of UTC, only meaningful for ValueTypeDateTimeTZ
	Duration Duration
	Str      string
	Struct   *StructValue
}

// Decimal is a fixed-point decimal: integer part + fractional part
// scaled by 10^19, matching the wire form exactly so encode/decode and
// in-memory representation agree. The value is Integer + FractionE19/10^19
// with the fraction always non-negative: negative values carry a floored
// integer part (-2.5 is Integer -3, FractionE19 5e18), which keeps the
// encoded byte order aligned with numeric order.
type Decimal struct {
	Integer    int64
	FractionE19 uint64 // fractional part * 10^19, always non-negative
}

// DecimalFractionUnit is the scale of FractionE19: one whole unit of the
// integer part.
const DecimalFractionUnit = uint64(10_000_000_000_000_000_000)

func (d Decimal) String() string {
	if d.Integer < 0 && d.FractionE19 != 0 {
		return fmt.Sprintf("-%d.%019d", -(d.Integer + 1), DecimalFractionUnit-d.FractionE19)
	}
	return fmt.Sprintf("%d.%019d", d.Integer, d.FractionE19)
}

// Float returns the nearest float64 to the decimal's value.
func (d Decimal) Float() float64 {
	return float64(d.Integer) + float64(d.FractionE19)/1e19
}

// DateTime is naive (no zone) seconds+nanos since the Unix epoch.
type DateTime struct {
	Seconds int64
	Nanos   int32
}

// Duration is a calendar duration: months + days + nanoseconds, three
// independently-meaningful components (a duration of "1 month" is not a
// fixed number of nanoseconds).
type Duration struct {
	Months int32
	Days   int32
	Nanos  int64
}

// StructValue is a named nested record of Values, keyed by field name.
// Fields are kept in declaration order so re-encoding is deterministic.
type StructValue struct {
	TypeLabel string
	Fields    []StructField
}

type StructField struct {
	Name  string
	Value Value
}

func Bool(b bool) Value     { return Value{Type: ValueTypeBoolean, Boolean: b} }
func Int(i int64) Value     { return Value{Type: ValueTypeInteger, Integer: i} }
func Dbl(f float64) Value   { return Value{Type: ValueTypeDouble, Double: f} }
func Str(s string) Value    { return Value{Type: ValueTypeString, Str: s} }

func (v Value) String() string {
	switch v.Type {
	case ValueTypeBoolean:
		return fmt.Sprintf("%v", v.Boolean)
	case ValueTypeInteger:
		return fmt.Sprintf("%d", v.Integer)
	case ValueTypeDouble:
		return fmt.Sprintf("%g", v.Double)
	case ValueTypeDecimal:
		return v.Decimal.String()
	case ValueTypeDate:
		return time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(v.Date)).Format("2006-01-02")
	case ValueTypeDateTime:
		return time.Unix(v.DateTime.Seconds, int64(v.DateTime.Nanos)).UTC().Format(time.RFC3339Nano)
	case ValueTypeDateTimeTZ:
		return fmt.Sprintf("%s%+05d", time.Unix(v.DateTime.Seconds, int64(v.DateTime.Nanos)).UTC().Format(time.RFC3339Nano), v.TZOffset/60*100+v.TZOffset%60)
	case ValueTypeDuration:
		return fmt.Sprintf("P%dM%dDT%dN", v.Duration.Months, v.Duration.Days, v.Duration.Nanos)
	case ValueTypeString:
		return v.Str
	case ValueTypeStruct:
		return fmt.Sprintf("%s{...}", v.Struct.TypeLabel)
	default:
		return "<invalid value>"
	}
}

// Encode renders the wire form: a 1-byte category tag followed by a
// fixed-width big-endian encoding (varlen for string/struct). Numeric
// encodings apply an order-preserving transform so byte-lexicographic
// order on the encoding matches value comparison order.
func (v Value) Encode() []byte {
	buf := []byte{byte(v.Type)}
	switch v.Type {
	case ValueTypeBoolean:
		if v.Boolean {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case ValueTypeInteger:
		buf = append(buf, encodeOrderedInt64(v.Integer)...)
	case ValueTypeDouble:
		buf = append(buf, encodeOrderedFloat64(v.Double)...)
	case ValueTypeDecimal:
		buf = append(buf, encodeOrderedInt64(v.Decimal.Integer)...)
		var fb [8]byte
		binary.BigEndian.PutUint64(fb[:], v.Decimal.FractionE19)
		buf = append(buf, fb[:]...)
	case ValueTypeDate:
		buf = append(buf, encodeOrderedInt32(v.Date)...)
	case ValueTypeDateTime:
		buf = append(buf, encodeDateTime(v.DateTime)...)
	case ValueTypeDateTimeTZ:
		buf = append(buf, encodeDateTime(v.DateTime)...)
		buf = append(buf, encodeOrderedInt32(v.TZOffset)...)
	case ValueTypeDuration:
		buf = append(buf, encodeOrderedInt32(v.Duration.Months)...)
		buf = append(buf, encodeOrderedInt32(v.Duration.Days)...)
		var nb [8]byte
		binary.BigEndian.PutUint64(nb[:], uint64(v.Duration.Nanos))
		buf = append(buf, nb[:]...)
	case ValueTypeString:
		buf = append(buf, encodeVarlen([]byte(v.Str))...)
	case ValueTypeStruct:
		buf = append(buf, encodeStruct(v.Struct)...)
	}
	return buf
}

// Decode parses the wire form Encode produces. decode(encode(v)) == v
// for every value type.
func Decode(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, fmt.Errorf("concept: empty value buffer")
	}
	vt := ValueType(b[0])
	rest := b[1:]
	switch vt {
	case ValueTypeBoolean:
		if len(rest) < 1 {
			return Value{}, 0, fmt.Errorf("concept: truncated boolean")
		}
		return Value{Type: vt, Boolean: rest[0] != 0}, 2, nil
	case ValueTypeInteger:
		i, n, err := decodeOrderedInt64(rest)
		return Value{Type: vt, Integer: i}, 1 + n, err
	case ValueTypeDouble:
		f, n, err := decodeOrderedFloat64(rest)
		return Value{Type: vt, Double: f}, 1 + n, err
	case ValueTypeDecimal:
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("concept: truncated decimal")
		}
		iPart, _, err := decodeOrderedInt64(rest[:8])
		if err != nil {
			return Value{}, 0, err
		}
		frac := binary.BigEndian.Uint64(rest[8:16])
		return Value{Type: vt, Decimal: Decimal{Integer: iPart, FractionE19: frac}}, 17, nil
	case ValueTypeDate:
		d, n, err := decodeOrderedInt32(rest)
		return Value{Type: vt, Date: d}, 1 + n, err
	case ValueTypeDateTime:
		dt, n, err := decodeDateTime(rest)
		return Value{Type: vt, DateTime: dt}, 1 + n, err
	case ValueTypeDateTimeTZ:
		dt, n, err := decodeDateTime(rest)
		if err != nil {
			return Value{}, 0, err
		}
		tz, n2, err := decodeOrderedInt32(rest[n:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: vt, DateTime: dt, TZOffset: tz}, 1 + n + n2, nil
	case ValueTypeDuration:
		months, n1, err := decodeOrderedInt32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		days, n2, err := decodeOrderedInt32(rest[n1:])
		if err != nil {
			return Value{}, 0, err
		}
		if len(rest[n1+n2:]) < 8 {
			return Value{}, 0, fmt.Errorf("concept: truncated duration nanos")
		}
		nanos := int64(binary.BigEndian.Uint64(rest[n1+n2 : n1+n2+8]))
		return Value{Type: vt, Duration: Duration{Months: months, Days: days, Nanos: nanos}}, 1 + n1 + n2 + 8, nil
	case ValueTypeString:
		s, n, err := decodeVarlen(rest)
		return Value{Type: vt, Str: string(s)}, 1 + n, err
	case ValueTypeStruct:
		sv, n, err := decodeStruct(rest)
		return Value{Type: vt, Struct: sv}, 1 + n, err
	default:
		return Value{}, 0, fmt.Errorf("concept: unknown value type tag %d", vt)
	}
}

// encodeOrderedInt64 XORs the sign bit so two's-complement comparison order
// matches unsigned byte-lex order — the standard order-preserving integer
// transform.
func encodeOrderedInt64(i int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(i)^(1<<63))
	return buf[:]
}

func decodeOrderedInt64(b []byte) (int64, int, error) {
	if len(b) < 8 {
		return 0, 0, fmt.Errorf("concept: truncated int64")
	}
	u := binary.BigEndian.Uint64(b[:8]) ^ (1 << 63)
	return int64(u), 8, nil
}

func encodeOrderedInt32(i int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(i)^(1<<31))
	return buf[:]
}

func decodeOrderedInt32(b []byte) (int32, int, error) {
	if len(b) < 4 {
		return 0, 0, fmt.Errorf("concept: truncated int32")
	}
	u := binary.BigEndian.Uint32(b[:4]) ^ (1 << 31)
	return int32(u), 4, nil
}

// encodeOrderedFloat64 flips all bits for negative numbers and just the
// sign bit for non-negative numbers, the standard IEEE-754
// order-preserving transform.
func encodeOrderedFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return buf[:]
}

func decodeOrderedFloat64(b []byte) (float64, int, error) {
	if len(b) < 8 {
		return 0, 0, fmt.Errorf("concept: truncated float64")
	}
	bits := binary.BigEndian.Uint64(b[:8])
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), 8, nil
}

func encodeDateTime(dt DateTime) []byte {
	buf := make([]byte, 12)
	copy(buf[0:8], encodeOrderedInt64(dt.Seconds))
	copy(buf[8:12], encodeOrderedInt32(dt.Nanos))
	return buf
}

func decodeDateTime(b []byte) (DateTime, int, error) {
	if len(b) < 12 {
		return DateTime{}, 0, fmt.Errorf("concept: truncated datetime")
	}
	sec, _, err := decodeOrderedInt64(b[:8])
	if err != nil {
		return DateTime{}, 0, err
	}
	nanos, _, err := decodeOrderedInt32(b[8:12])
	if err != nil {
		return DateTime{}, 0, err
	}
	return DateTime{Seconds: sec, Nanos: nanos}, 12, nil
}

func encodeVarlen(b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	return append(lenBuf[:], b...)
}

func decodeVarlen(b []byte) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("concept: truncated varlen length")
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return nil, 0, fmt.Errorf("concept: truncated varlen payload")
	}
	return b[4 : 4+n], 4 + n, nil
}

func encodeStruct(s *StructValue) []byte {
	buf := encodeVarlen([]byte(s.TypeLabel))
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(s.Fields)))
	buf = append(buf, countBuf[:]...)
	for _, f := range s.Fields {
		buf = append(buf, encodeVarlen([]byte(f.Name))...)
		buf = append(buf, f.Value.Encode()...)
	}
	return buf
}

func decodeStruct(b []byte) (*StructValue, int, error) {
	label, n, err := decodeVarlen(b)
	if err != nil {
		return nil, 0, err
	}
	off := n
	if len(b[off:]) < 4 {
		return nil, 0, fmt.Errorf("concept: truncated struct field count")
	}
	count := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	sv := &StructValue{TypeLabel: string(label), Fields: make([]StructField, 0, count)}
	for i := 0; i < count; i++ {
		name, n2, err := decodeVarlen(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n2
		val, n3, err := Decode(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n3
		sv.Fields = append(sv.Fields, StructField{Name: string(name), Value: val})
	}
	return sv, off, nil
}

// Compare orders two values of the same ValueType. Mixed-type
// comparisons are only meaningful after the expression compiler's
// implicit-cast pass; Compare assumes its caller already resolved that.
func Compare(a, b Value) int {
	if a.Type != b.Type {
		panic(fmt.Sprintf("concept: Compare called on mismatched types %s vs %s", a.Type, b.Type))
	}
	switch a.Type {
	case ValueTypeBoolean:
		return boolCompare(a.Boolean, b.Boolean)
	case ValueTypeInteger:
		return int64Compare(a.Integer, b.Integer)
	case ValueTypeDouble:
		return float64Compare(a.Double, b.Double)
	case ValueTypeDecimal:
		if c := int64Compare(a.Decimal.Integer, b.Decimal.Integer); c != 0 {
			return c
		}
		// The fraction is unsigned; casting through int64 would flip the
		// order of fractions past 2^63, diverging from the encoded byte
		// order.
		return uint64Compare(a.Decimal.FractionE19, b.Decimal.FractionE19)
	case ValueTypeDate:
		return int64Compare(int64(a.Date), int64(b.Date))
	case ValueTypeDateTime, ValueTypeDateTimeTZ:
		if c := int64Compare(a.DateTime.Seconds, b.DateTime.Seconds); c != 0 {
			return c
		}
		return int64Compare(int64(a.DateTime.Nanos), int64(b.DateTime.Nanos))
	case ValueTypeString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		// Struct and Duration have no total order in the spec; compare by encoding.
		ae, be := a.Encode(), b.Encode()
		for i := 0; i < len(ae) && i < len(be); i++ {
			if ae[i] != be[i] {
				if ae[i] < be[i] {
					return -1
				}
				return 1
			}
		}
		return len(ae) - len(be)
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uint64Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func float64Compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
