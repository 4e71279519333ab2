package snapshot

import "bytes"

// StartKind selects how a KeyRange's start bound relates to the bytes
// given.
type StartKind uint8

const (
	StartInclusive StartKind = iota
	StartExcludeFirstWithPrefix
	StartExcludePrefix
)

// EndKind selects how a KeyRange's end bound relates to the bytes given.
type EndKind uint8

const (
	EndUnbounded EndKind = iota
	EndWithinStartAsPrefix
	EndPrefixInclusive
	EndPrefixExclusive
)

// KeyRange is the range-scan descriptor IterateRange consumes. Start and
// End each carry their own interpretation of the bound bytes, so a single
// struct covers inclusive scans, prefix scans, and strictly-after resumes.
type KeyRange struct {
	StartBytes []byte
	Start      StartKind
	EndBytes   []byte // meaningful only for EndPrefixInclusive/Exclusive
	End        EndKind
}

// PrefixRange returns a range over every key sharing the given prefix.
func PrefixRange(prefix []byte) KeyRange {
	return KeyRange{StartBytes: prefix, Start: StartInclusive, End: EndWithinStartAsPrefix}
}

// ExclusiveStart returns a range beginning strictly after startKey but
// still bounded to keys sharing prefix.
func ExclusiveStart(prefix, startKey []byte) KeyRange {
	return KeyRange{StartBytes: startKey, Start: StartExcludeFirstWithPrefix, EndBytes: prefix, End: EndPrefixInclusive}
}

// BoundedRange returns a half-open range [start, end).
func BoundedRange(start, end []byte) KeyRange {
	return KeyRange{StartBytes: start, Start: StartInclusive, EndBytes: end, End: EndPrefixExclusive}
}

// bounds resolves the range into concrete cursor bounds: a seek key and an
// exclusive upper bound (nil = unbounded). Start-kind skipping beyond the
// seek position is handled by skipStart during iteration.
func (r KeyRange) bounds() (start, end []byte) {
	start = r.StartBytes
	switch r.End {
	case EndUnbounded:
		end = nil
	case EndWithinStartAsPrefix:
		end = prefixSuccessor(r.StartBytes)
	case EndPrefixInclusive:
		end = prefixSuccessor(r.EndBytes)
	case EndPrefixExclusive:
		end = r.EndBytes
	}
	return start, end
}

// skipStart reports whether key, though >= the seek position, is still
// excluded by the range's start kind.
func (r KeyRange) skipStart(key []byte) bool {
	switch r.Start {
	case StartExcludeFirstWithPrefix:
		return bytes.Equal(key, r.StartBytes)
	case StartExcludePrefix:
		return bytes.HasPrefix(key, r.StartBytes)
	default:
		return false
	}
}

// Contains reports whether key falls within the range, used by write-buffer
// scans that cannot delegate to the underlying store's native bounds.
func (r KeyRange) Contains(key []byte) bool {
	if bytes.Compare(key, r.StartBytes) < 0 {
		return false
	}
	if r.skipStart(key) {
		return false
	}
	switch r.End {
	case EndUnbounded:
		return true
	case EndWithinStartAsPrefix:
		return bytes.HasPrefix(key, r.StartBytes)
	case EndPrefixInclusive:
		end := prefixSuccessor(r.EndBytes)
		return end == nil || bytes.Compare(key, end) < 0
	case EndPrefixExclusive:
		return bytes.Compare(key, r.EndBytes) < 0
	}
	return true
}

// prefixSuccessor returns the smallest key strictly greater than every key
// having prefix as a prefix, or nil when no such key exists (all 0xff).
func prefixSuccessor(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
