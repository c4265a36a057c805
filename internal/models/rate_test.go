package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewXPBounds(t *testing.T) {
	_, err := NewXP(499.9)
	assert.Error(t, err)
	_, err = NewXP(5500.1)
	assert.Error(t, err)

	r, err := NewXP(2000.0)
	require.NoError(t, err)
	assert.Equal(t, "2000.0", r.String())
}

func TestNewUdemae(t *testing.T) {
	r, err := NewUdemae("S+")
	require.NoError(t, err)
	assert.Equal(t, "S+", r.String())

	_, err = NewUdemae("X")
	assert.Error(t, err)
}

func TestRateLess(t *testing.T) {
	lo, _ := NewXP(1500)
	hi, _ := NewXP(2500)
	assert.True(t, lo.Less(hi))
	assert.False(t, hi.Less(lo))

	b, _ := NewUdemae("B+")
	s, _ := NewUdemae("S")
	assert.True(t, b.Less(s))
	assert.False(t, s.Less(b))

	// Cross-type comparison is undefined and must not report true.
	assert.False(t, lo.Less(s))
	assert.False(t, s.Less(lo))
}

func TestParseRate(t *testing.T) {
	r, ok := ParseRate("2150.7")
	require.True(t, ok)
	assert.Equal(t, RateTypeXP, r.Type)
	assert.InDelta(t, 2150.7, r.XP, 0.001)

	r, ok = ParseRate("A-")
	require.True(t, ok)
	assert.Equal(t, RateTypeUdemae, r.Type)

	_, ok = ParseRate("")
	assert.False(t, ok)
	_, ok = ParseRate("99999")
	assert.False(t, ok)
}
