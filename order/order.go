// Package order defines the total ordering over alignment records used by
// the sort and merge engines.
//
// Two modes are supported, selected once per sort/merge session: positional
// (coordinate) order and query-name order. Mode flags are carried explicitly
// in a Comparator value rather than as process-global state, so a single
// process can run multiple sessions concurrently without interference.
package order

import "github.com/biogo/hts/sam"

// Key is the 64-bit composite positional sort key:
// (tid<<32) | ((pos+1)<<1) | strand.
type Key uint64

// HeapEmpty is the sentinel key marking an exhausted cursor. It compares
// greater than every real key, including those for unmapped records.
const HeapEmpty Key = ^Key(0)

// PositionalKey computes the composite key for a record. Unmapped records
// (Ref == nil) get tid == -1, which, once shifted into the key, sorts after
// every mapped reference -- records land after all mapped records but
// before HeapEmpty.
func PositionalKey(r *sam.Record) Key {
	var tid int32 = -1
	if r.Ref != nil {
		tid = int32(r.Ref.ID())
	}
	pos := int32(r.Pos)
	key := (uint64(uint32(tid)) << 32) | (uint64(uint32(pos+1)) << 1)
	if r.Flags&sam.Reverse != 0 {
		key |= 1
	}
	return Key(key)
}

// Comparator carries the session-level mode flags explicitly; it is passed
// by value to every component that needs to order records (rungen, merge).
type Comparator struct {
	// ByQName selects query-name order over the default positional order.
	ByQName bool
	// IgnoreWarts enables wart-stripping in qname comparisons.
	IgnoreWarts bool
}

// Less reports whether a sorts strictly before b under the comparator's
// mode, ignoring the final arrival-index tiebreaker (which only the heap
// merger can supply, since it is assigned at pull time).
func (c Comparator) Less(a, b *sam.Record) bool {
	if c.ByQName {
		return c.lessByQName(a, b)
	}
	return PositionalKey(a) < PositionalKey(b)
}

func (c Comparator) lessByQName(a, b *sam.Record) bool {
	an, bn := a.Name, b.Name
	if c.IgnoreWarts {
		an = StripWarts(an)
		bn = StripWarts(bn)
	}
	if d := StrnumCompare(an, bn); d != 0 {
		return d < 0
	}
	aPaired := a.Flags&sam.Paired != 0
	bPaired := b.Flags&sam.Paired != 0
	if aPaired != bPaired {
		return !aPaired // unpaired < paired
	}
	// Counter-intuitive by design (matches the samtools bam1_lt contract):
	// a<b iff a's (READ1|READ2) bits, as an integer, are *larger* than b's.
	const readMask = sam.Read1 | sam.Read2
	return int(a.Flags&readMask) > int(b.Flags&readMask)
}

// HeapLess is the min-heap ordering used by the k-way merger. It is defined
// directly in terms of Less: the heap merger and the in-memory sort must
// agree on emission order, including the (READ1|READ2) tiebreak, so they
// share one comparator rather than two independently written ones that
// happen to agree.
func (c Comparator) HeapLess(a, b *sam.Record) bool {
	return c.Less(a, b)
}

// StripWarts repeatedly removes a leading two-character [MFRC]_ prefix from
// name, e.g. "M_F_read1" -> "read1".
func StripWarts(name string) string {
	for len(name) >= 2 && name[1] == '_' {
		switch name[0] {
		case 'M', 'F', 'R', 'C':
			name = name[2:]
			continue
		}
		break
	}
	return name
}

// StrnumCompare implements samtools' numeric-aware query-name comparison:
// runs of decimal digits compare numerically; everything else compares
// byte-by-byte. A string that runs out first is lesser; if both run out at
// the same position, the shorter original string is lesser.
func StrnumCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := trimLeadingZeros(a[si:i])
			nb := trimLeadingZeros(b[sj:j])
			if len(na) != len(nb) {
				if len(na) < len(nb) {
					return -1
				}
				return 1
			}
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if ca != cb {
			return int(ca) - int(cb)
		}
		i++
		j++
	}
	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	default:
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
		return 0
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
