package sipping

import "strconv"

// Count is the number of probes a run makes: either a fixed number or
// no limit at all.
type Count struct {
	n       uint
	bounded bool
}

// Unbounded returns a Count that never runs out.
func Unbounded() Count {
	return Count{}
}

// Finite returns a Count of exactly n probes.
func Finite(n uint) Count {
	return Count{n: n, bounded: true}
}

// CountFromFlag maps the command line value, where 0 means forever.
func CountFromFlag(n uint) Count {
	if n == 0 {
		return Unbounded()
	}
	return Finite(n)
}

// IsUnbounded reports whether c has no limit.
func (c Count) IsUnbounded() bool {
	return !c.bounded
}

// Allows reports whether another probe may follow the done ones.
func (c Count) Allows(done uint) bool {
	return c.IsUnbounded() || done < c.n
}

func (c Count) String() string {
	if c.IsUnbounded() {
		return "unbounded"
	}
	return strconv.FormatUint(uint64(c.n), 10)
}
