package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		meta *RecordingMetadata
		want string
	}{
		{
			name: "battle with full result",
			meta: &RecordingMetadata{
				GameMode:  GameModeBattle,
				StartedAt: startedAt,
				Judgement: JudgementWin,
				Result: Result{Battle: &BattleResult{
					Match: MatchXMatch,
					Rule:  RuleRainmaker,
					Stage: StageScorchGorge,
				}},
			},
			want: "20250101_120000_Xマッチ_ガチホコ_WIN_ユノハナ大渓谷",
		},
		{
			name: "battle without result",
			meta: &RecordingMetadata{
				GameMode:  GameModeBattle,
				StartedAt: startedAt,
			},
			want: "20250101_120000",
		},
		{
			name: "battle with result but no judgement",
			meta: &RecordingMetadata{
				GameMode:  GameModeBattle,
				StartedAt: startedAt,
				Result: Result{Battle: &BattleResult{
					Match: MatchRegular,
					Rule:  RuleTurfWar,
					Stage: StageMakoMart,
				}},
			},
			want: "20250101_120000",
		},
		{
			name: "salmon never extends",
			meta: &RecordingMetadata{
				GameMode:  GameModeSalmon,
				StartedAt: startedAt,
				Judgement: JudgementWin,
				Result:    Result{Salmon: &SalmonResult{Stage: StageSockeyeStation}},
			},
			want: "20250101_120000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.BaseName())
		})
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	rate, err := NewXP(2150.7)
	require.NoError(t, err)

	original := &RecordingMetadata{
		GameMode:  GameModeBattle,
		StartedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		Rate:      rate,
		Judgement: JudgementLose,
		Result: Result{Battle: &BattleResult{
			Match:   MatchAnarchyOpen,
			Rule:    RuleClamBlitz,
			Stage:   StageMantaMaria,
			Kill:    7,
			Death:   9,
			Special: 2,
		}},
		Allies:  [4]string{"スプラシューター", "わかばシューター", UnknownWeapon, "バケットスロッシャー"},
		Enemies: [4]string{"リッター4K", "スパッタリー", "ホクサイ", "ノヴァブラスター"},
	}

	data, err := original.MarshalSidecar()
	require.NoError(t, err)

	restored, err := UnmarshalSidecar(data)
	require.NoError(t, err)

	assert.Equal(t, original.GameMode, restored.GameMode)
	assert.True(t, original.StartedAt.Equal(restored.StartedAt))
	assert.True(t, original.Rate.Equal(restored.Rate))
	assert.Equal(t, original.Judgement, restored.Judgement)
	require.NotNil(t, restored.Result.Battle)
	assert.Equal(t, *original.Result.Battle, *restored.Result.Battle)
	assert.Equal(t, original.Allies, restored.Allies)
	assert.Equal(t, original.Enemies, restored.Enemies)
}

func TestSidecarRoundTripSalmon(t *testing.T) {
	original := &RecordingMetadata{
		GameMode:  GameModeSalmon,
		StartedAt: time.Date(2025, 6, 2, 21, 5, 0, 0, time.UTC),
		Result: Result{Salmon: &SalmonResult{
			Stage:     StageSpawningGrounds,
			Hazard:    93,
			GoldenEgg: 41,
			PowerEgg:  1203,
			Rescue:    3,
			Rescued:   1,
		}},
	}

	data, err := original.MarshalSidecar()
	require.NoError(t, err)

	restored, err := UnmarshalSidecar(data)
	require.NoError(t, err)

	require.NotNil(t, restored.Result.Salmon)
	assert.Equal(t, *original.Result.Salmon, *restored.Result.Salmon)
	assert.Nil(t, restored.Result.Battle)
}

func TestSidecarNullFields(t *testing.T) {
	m := NewRecordingMetadata(GameModeBattle, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	data, err := m.MarshalSidecar()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rate": null`)
	assert.Contains(t, string(data), `"judgement": null`)
	assert.Contains(t, string(data), `"kill": null`)

	restored, err := UnmarshalSidecar(data)
	require.NoError(t, err)
	assert.True(t, restored.Rate.IsZero())
	assert.Empty(t, restored.Judgement)
	assert.True(t, restored.Result.IsZero())
}

func TestUnmarshalSidecarErrors(t *testing.T) {
	_, err := UnmarshalSidecar([]byte(`not json`))
	assert.Error(t, err)

	_, err = UnmarshalSidecar([]byte(`{"game_mode":"golf","started_at":"2025-01-01T00:00:00Z"}`))
	assert.Error(t, err)

	_, err = UnmarshalSidecar([]byte(`{"game_mode":"battle","started_at":"yesterday"}`))
	assert.Error(t, err)
}
