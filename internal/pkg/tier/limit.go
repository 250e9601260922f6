package tier

import "strconv"

// Limit is a per-action ceiling. Unlimited is an explicit flag rather
// than a large integer so that arithmetic against it cannot silently
// overflow and so it renders as a proper infinity to users.
type Limit struct {
	Value     int64
	Unlimited bool
}

func LimitOf(n int64) Limit {
	return Limit{Value: n}
}

func NoLimit() Limit {
	return Limit{Unlimited: true}
}

// Allows reports whether consuming amount on top of used stays within the
// limit.
func (l Limit) Allows(used, amount int64) bool {
	if l.Unlimited {
		return true
	}
	return used+amount <= l.Value
}

// Zero reports whether the action is entirely unavailable at this limit.
func (l Limit) Zero() bool {
	return !l.Unlimited && l.Value <= 0
}

func (l Limit) String() string {
	if l.Unlimited {
		return "∞"
	}
	return strconv.FormatInt(l.Value, 10)
}
