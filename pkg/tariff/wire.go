package tariff

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Wire format: a 3-field tuple (magic_string, format_version, payload),
// all multi-byte integers in the endianness the writer used:
//
//	<magic:13 "Mogwai tariff"><format_version:2>
//	<name_length:2><name:name_length>
//	<period_count:2><period>*period_count
//
// Each version-2 period:
//
//	<start_unix:8><end_unix:8>
//	<start_tz_length:2><start_tz><end_tz_length:2><end_tz>
//	<repeat_type:2><repeat_period:4><capacity_limit:8>
//
// format_version is always 1 or 2; it doubles as the byte-order mark, since
// a reader that decodes it big-endian but finds 256 or 512 knows the writer
// used the opposite byte order (and the reverse for a little-endian reader).
// Version 1 lacked start_tz/end_tz and is refused: without an explicit zone
// a reconstructed Period cannot reproduce DST-sensitive recurrences, so this
// loader only accepts version 2 (see DESIGN.md).
const (
	magicString         = "Mogwai tariff"
	formatVersionLegacy = uint16(1)
	formatVersion       = uint16(2)
)

// The wire-format errors below all wrap ErrInvalidTariff.
var (
	// ErrShortTariff is returned when a tariff file ends before a complete
	// record can be read.
	ErrShortTariff = fmt.Errorf("%w: short read", ErrInvalidTariff)
	// ErrBadMagic is returned when the leading magic string doesn't match.
	ErrBadMagic = fmt.Errorf("%w: bad magic string", ErrInvalidTariff)
	// ErrByteOrder is returned when format_version decodes to 256 or 512
	// (1 or 2 byte-swapped), indicating the file was written in the
	// opposite byte order from what the reader assumed.
	ErrByteOrder = fmt.Errorf("%w: byte order mismatch", ErrInvalidTariff)
	// ErrUnsupportedVersion is returned for a format_version this reader
	// doesn't know how to decode (including the legacy version-1 format).
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported format version", ErrInvalidTariff)
)

var (
	_ encoding.BinaryMarshaler   = (*Tariff)(nil)
	_ encoding.BinaryUnmarshaler = (*Tariff)(nil)
	_ io.WriterTo                = (*Tariff)(nil)
)

func putString(buf []byte, offset int, s string) int {
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	offset += copy(buf[offset:], s)
	return offset
}

func periodWireLen(p *Period) int {
	return 8 + 8 + 2 + len(p.start.Location().String()) + 2 + len(p.end.Location().String()) + 2 + 4 + 8
}

// MarshalBinary encodes t into its version-2 wire format, always in
// big-endian byte order.
func (t *Tariff) MarshalBinary() ([]byte, error) {
	nameBytes := []byte(t.name)
	if len(nameBytes) > 0xFFFF {
		return nil, invalidTariff("name too long to encode")
	}
	if len(t.periods) > 0xFFFF {
		return nil, invalidTariff("too many periods to encode")
	}

	size := len(magicString) + 2 + 2 + len(nameBytes) + 2
	for _, p := range t.periods {
		size += periodWireLen(p)
	}

	buf := make([]byte, size)
	offset := 0

	offset += copy(buf[offset:], magicString)
	binary.BigEndian.PutUint16(buf[offset:], formatVersion)
	offset += 2

	offset = putString(buf, offset, t.name)

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(t.periods)))
	offset += 2

	for _, p := range t.periods {
		binary.BigEndian.PutUint64(buf[offset:], uint64(p.start.Unix()))
		offset += 8
		binary.BigEndian.PutUint64(buf[offset:], uint64(p.end.Unix()))
		offset += 8

		offset = putString(buf, offset, p.start.Location().String())
		offset = putString(buf, offset, p.end.Location().String())

		binary.BigEndian.PutUint16(buf[offset:], uint16(p.repeatType))
		offset += 2
		binary.BigEndian.PutUint32(buf[offset:], p.repeatPeriod)
		offset += 4
		binary.BigEndian.PutUint64(buf[offset:], p.capacityLimit)
		offset += 8
	}

	return buf, nil
}

// WriteTo writes t's wire encoding to w.
func (t *Tariff) WriteTo(w io.Writer) (int64, error) {
	b, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

func readString(b []byte, offset int) (string, int, error) {
	if len(b) < offset+2 {
		return "", 0, ErrShortTariff
	}
	n := int(binary.BigEndian.Uint16(b[offset:]))
	offset += 2
	if len(b) < offset+n {
		return "", 0, ErrShortTariff
	}
	return string(b[offset : offset+n]), offset + n, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "UTC" || name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("tariff: loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// UnmarshalBinary decodes a tariff from its wire format and validates it.
// Validation runs as part of decode: a decoded Tariff is always valid.
func (t *Tariff) UnmarshalBinary(b []byte) error {
	header := len(magicString) + 2
	if len(b) < header {
		return ErrShortTariff
	}
	if string(b[:len(magicString)]) != magicString {
		return ErrBadMagic
	}
	offset := len(magicString)

	version := binary.BigEndian.Uint16(b[offset:])
	offset += 2

	switch version {
	case formatVersion:
		// fall through to payload decode below
	case formatVersionLegacy:
		return fmt.Errorf("%w: version 1 (legacy, no time zone fields)", ErrUnsupportedVersion)
	default:
		swapped := version>>8 | version<<8
		if swapped == formatVersion || swapped == formatVersionLegacy {
			return ErrByteOrder
		}
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	name, offset, err := readString(b, offset)
	if err != nil {
		return err
	}

	if len(b) < offset+2 {
		return ErrShortTariff
	}
	periodCount := int(binary.BigEndian.Uint16(b[offset:]))
	offset += 2

	periods := make([]*Period, 0, periodCount)
	for i := 0; i < periodCount; i++ {
		if len(b) < offset+16 {
			return ErrShortTariff
		}
		startUnix := int64(binary.BigEndian.Uint64(b[offset:]))
		offset += 8
		endUnix := int64(binary.BigEndian.Uint64(b[offset:]))
		offset += 8

		var startTZ, endTZ string
		startTZ, offset, err = readString(b, offset)
		if err != nil {
			return err
		}
		endTZ, offset, err = readString(b, offset)
		if err != nil {
			return err
		}

		if len(b) < offset+2+4+8 {
			return ErrShortTariff
		}
		repeatType := RepeatType(binary.BigEndian.Uint16(b[offset:]))
		offset += 2
		repeatPeriod := binary.BigEndian.Uint32(b[offset:])
		offset += 4
		capacityLimit := binary.BigEndian.Uint64(b[offset:])
		offset += 8

		startLoc, err := loadLocation(startTZ)
		if err != nil {
			return err
		}
		endLoc, err := loadLocation(endTZ)
		if err != nil {
			return err
		}

		start := time.Unix(startUnix, 0).In(startLoc)
		end := time.Unix(endUnix, 0).In(endLoc)

		p, err := NewPeriod(start, end, repeatType, repeatPeriod, capacityLimit)
		if err != nil {
			return err
		}
		periods = append(periods, p)
	}

	decoded, err := New(name, periods)
	if err != nil {
		return err
	}

	*t = *decoded
	return nil
}
