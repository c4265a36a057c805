package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMatch(t *testing.T) {
	for _, m := range Matches {
		got, ok := ParseMatch(string(m))
		assert.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := ParseMatch("カジュアルマッチ")
	assert.False(t, ok)
}

func TestMatchEqualsRelaxed(t *testing.T) {
	tests := []struct {
		a, b Match
		want bool
	}{
		{MatchAnarchyOpen, MatchAnarchyChallenge, true},
		{MatchFestOpen, MatchFestChallenge, true},
		{MatchXMatch, MatchXMatch, true},
		{MatchAnarchyOpen, MatchXMatch, false},
		{MatchFestOpen, MatchTriColor, false},
		{MatchRegular, MatchAnarchyOpen, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.EqualsRelaxed(tt.b), "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want, tt.b.EqualsRelaxed(tt.a), "%s vs %s reversed", tt.b, tt.a)
	}
}

func TestParseStage(t *testing.T) {
	got, ok := ParseStage("ユノハナ大渓谷")
	assert.True(t, ok)
	assert.Equal(t, StageScorchGorge, got)

	got, ok = ParseStage("アラマキ砦")
	assert.True(t, ok)
	assert.Equal(t, StageSockeyeStation, got)

	_, ok = ParseStage("タチウオパーキング")
	assert.False(t, ok)
}

func TestParseJudgement(t *testing.T) {
	j, ok := ParseJudgement("WIN")
	assert.True(t, ok)
	assert.Equal(t, JudgementWin, j)

	_, ok = ParseJudgement("DRAW")
	assert.False(t, ok)
}
