package models

import (
	"fmt"
	"strconv"
)

// RateType tags the two rating variants.
type RateType string

const (
	// RateTypeXP is the numeric X Power rating.
	RateTypeXP RateType = "xp"
	// RateTypeUdemae is the ordinal anarchy rank.
	RateTypeUdemae RateType = "udemae"
)

// udemaeOrder lists ranks from lowest to highest; index is the ordering.
var udemaeOrder = []string{"C-", "C", "C+", "B-", "B", "B+", "A-", "A", "A+", "S", "S+"}

// XP bounds observed in game.
const (
	MinXP = 500.0
	MaxXP = 5500.0
)

// Rate is a tagged rating: either an XP value or an udemae rank. The
// zero value is "no rate". Ordering is defined only within the same
// type; callers must not compare across types.
type Rate struct {
	Type RateType
	// XP holds the power value when Type == RateTypeXP.
	XP float64
	// Udemae holds the rank when Type == RateTypeUdemae.
	Udemae string
}

// NewXP builds an XP rate, rejecting out-of-range values.
func NewXP(value float64) (Rate, error) {
	if value < MinXP || value > MaxXP {
		return Rate{}, fmt.Errorf("xp %v out of range [%v, %v]", value, MinXP, MaxXP)
	}
	return Rate{Type: RateTypeXP, XP: value}, nil
}

// NewUdemae builds an udemae rate, rejecting unknown ranks.
func NewUdemae(rank string) (Rate, error) {
	for _, r := range udemaeOrder {
		if r == rank {
			return Rate{Type: RateTypeUdemae, Udemae: rank}, nil
		}
	}
	return Rate{}, fmt.Errorf("unknown udemae rank %q", rank)
}

// IsZero reports whether no rate has been set.
func (r Rate) IsZero() bool { return r.Type == "" }

// Equal reports whether two rates have the same type and value.
func (r Rate) Equal(other Rate) bool {
	if r.Type != other.Type {
		return false
	}
	switch r.Type {
	case RateTypeXP:
		return r.XP == other.XP
	case RateTypeUdemae:
		return r.Udemae == other.Udemae
	}
	return true
}

// Less orders two rates of the same type; comparing across types is
// undefined and returns false.
func (r Rate) Less(other Rate) bool {
	if r.Type != other.Type {
		return false
	}
	switch r.Type {
	case RateTypeXP:
		return r.XP < other.XP
	case RateTypeUdemae:
		return udemaeIndex(r.Udemae) < udemaeIndex(other.Udemae)
	}
	return false
}

func udemaeIndex(rank string) int {
	for i, r := range udemaeOrder {
		if r == rank {
			return i
		}
	}
	return -1
}

// String renders the rate the way it appears in sidecars: the decimal
// power for XP, the rank letter for udemae.
func (r Rate) String() string {
	switch r.Type {
	case RateTypeXP:
		return strconv.FormatFloat(r.XP, 'f', 1, 64)
	case RateTypeUdemae:
		return r.Udemae
	}
	return ""
}

// ParseRate reads a sidecar rate string back into a Rate. Numeric
// strings become XP; rank letters become udemae.
func ParseRate(s string) (Rate, bool) {
	if s == "" {
		return Rate{}, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		r, err := NewXP(v)
		if err != nil {
			return Rate{}, false
		}
		return r, true
	}
	r, err := NewUdemae(s)
	if err != nil {
		return Rate{}, false
	}
	return r, true
}
