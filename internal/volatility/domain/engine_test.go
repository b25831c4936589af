package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/payload"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

const now uint64 = 1_700_000_000

var (
	oneEth   = decimal.RequireFromString("1000000000000000000")
	fiveEth  = decimal.RequireFromString("5000000000000000000")
	tenthEth = decimal.RequireFromString("100000000000000000")
)

func snapshot(current uint64) *domain.Snapshot {
	return &domain.Snapshot{
		BaselineVolatility:  300,
		CurrentVolatility:   current,
		VolatilityThreshold: 600,
		EmergencyThreshold:  1200,
		MaxExecutionSize:    fiveEth,
		MinExecutionSize:    tenthEth,
		LastUpdateTime:      now - 60,
	}
}

func TestValidate_CheckOrder(t *testing.T) {
	e := domain.NewEngine()

	// 边界错误优先于紧急阈值
	s := snapshot(5000)
	s.MaxExecutionSize = decimal.NewFromInt(1)
	assert.ErrorIs(t, e.Validate(s, now), domain.ErrInvalidVolatilityBounds)

	// 紧急阈值优先于基准倍数
	s = snapshot(3500)
	s.EmergencyThreshold = 3400
	assert.ErrorIs(t, e.Validate(s, now), domain.ErrEmergencyVolatility)

	// 基准倍数优先于新鲜度
	s = snapshot(3001)
	s.EmergencyThreshold = 5000
	s.LastUpdateTime = 0
	assert.ErrorIs(t, e.Validate(s, now), domain.ErrVolatilityTooHigh)

	s = snapshot(3000)
	s.EmergencyThreshold = 5000
	assert.NoError(t, e.Validate(s, now), "exactly 10x baseline is allowed")
}

func TestValidate_Bounds(t *testing.T) {
	e := domain.NewEngine()
	cases := map[string]func(s *domain.Snapshot){
		"zero baseline":            func(s *domain.Snapshot) { s.BaselineVolatility = 0 },
		"max below min":            func(s *domain.Snapshot) { s.MinExecutionSize = fiveEth.Add(decimal.NewFromInt(1)) },
		"threshold below baseline": func(s *domain.Snapshot) { s.VolatilityThreshold = 299 },
		"emergency below threshold": func(s *domain.Snapshot) {
			s.EmergencyThreshold = 599
		},
		"negative min": func(s *domain.Snapshot) { s.MinExecutionSize = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := snapshot(350)
			mutate(s)
			assert.ErrorIs(t, e.Validate(s, now), domain.ErrInvalidVolatilityBounds)
		})
	}

	s := snapshot(350)
	s.MinExecutionSize = s.MaxExecutionSize
	assert.NoError(t, e.Validate(s, now), "max == min is allowed")
}

func TestValidate_Staleness(t *testing.T) {
	e := domain.NewEngine()

	s := snapshot(350)
	s.LastUpdateTime = now - protocol.StalenessThreshold + 1
	assert.NoError(t, e.Validate(s, now))

	s.LastUpdateTime = now - protocol.StalenessThreshold
	assert.ErrorIs(t, e.Validate(s, now), domain.ErrStaleVolatilityData)

	s.LastUpdateTime = now + 1
	assert.ErrorIs(t, e.Validate(s, now), domain.ErrStaleVolatilityData)

	s.LastUpdateTime = now
	assert.NoError(t, e.Validate(s, now))
}

func TestRiskScore(t *testing.T) {
	e := domain.NewEngine()
	tests := []struct {
		current uint64
		want    uint64
	}{
		{0, 100},
		{150, 100},
		{300, 100},
		{450, 350},
		{600, 600},
		{900, 800},
		{1200, 1000},
		{3000, 1000},
		{^uint64(0), 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.RiskScore(snapshot(tt.current)), "current=%d", tt.current)
	}
}

func TestRiskScore_Bounded(t *testing.T) {
	e := domain.NewEngine()
	for c := uint64(0); c <= 5000; c += 7 {
		score := e.RiskScore(snapshot(c))
		assert.LessOrEqual(t, score, uint64(1000))
		assert.GreaterOrEqual(t, score, uint64(100))
	}
}

func TestAdjustmentFactor(t *testing.T) {
	e := domain.NewEngine()

	assert.Equal(t, uint64(125), e.AdjustmentFactor(snapshot(150)))
	assert.Equal(t, uint64(150), e.AdjustmentFactor(snapshot(0)))
	assert.Equal(t, uint64(100), e.AdjustmentFactor(snapshot(300)))
	assert.Equal(t, uint64(100), e.AdjustmentFactor(snapshot(350)))
	assert.Equal(t, uint64(100), e.AdjustmentFactor(snapshot(600)), "threshold itself is normal band")

	s := snapshot(450)
	s.VolatilityThreshold = 400
	assert.Equal(t, uint64(75), e.AdjustmentFactor(s))

	assert.Equal(t, uint64(50), e.AdjustmentFactor(snapshot(900)), "reduction capped at 50")

	conservative := snapshot(350)
	conservative.ConservativeMode = true
	assert.Equal(t, uint64(90), e.AdjustmentFactor(conservative))

	edge := snapshot(302)
	edge.VolatilityThreshold = 301
	edge.ConservativeMode = true
	assert.Equal(t, uint64(90), e.AdjustmentFactor(edge))
}

func TestAdjustmentFactor_MonotonicAboveBaseline(t *testing.T) {
	e := domain.NewEngine()
	for _, threshold := range []uint64{300, 301, 450, 600, 1200} {
		for _, conservative := range []bool{false, true} {
			prev := uint64(1000)
			for c := uint64(301); c <= 1200; c++ {
				s := snapshot(c)
				s.VolatilityThreshold = threshold
				s.ConservativeMode = conservative
				f := e.AdjustmentFactor(s)
				require.LessOrEqual(t, f, prev, "threshold=%d conservative=%v current=%d", threshold, conservative, c)
				require.GreaterOrEqual(t, f, uint64(50))
				prev = f
			}
		}
	}
}

func TestIntervalMultiplier(t *testing.T) {
	e := domain.NewEngine()

	s := snapshot(450)
	s.VolatilityThreshold = 400
	assert.Equal(t, uint64(75), e.IntervalMultiplier(s))
	assert.Equal(t, uint64(50), e.IntervalMultiplier(snapshot(1200)))
	assert.Equal(t, uint64(200), e.IntervalMultiplier(snapshot(149)))
	assert.Equal(t, uint64(100), e.IntervalMultiplier(snapshot(150)), "exactly half is not below half")
	assert.Equal(t, uint64(100), e.IntervalMultiplier(snapshot(350)))
}

func TestApplyAdjustment_ScenarioA(t *testing.T) {
	e := domain.NewEngine()
	s := snapshot(150)

	require.NoError(t, e.Validate(s, now))
	got := e.ApplyAdjustment(oneEth, s)
	assert.True(t, got.GreaterThan(oneEth))
	assert.True(t, got.LessThanOrEqual(fiveEth))
	assert.Equal(t, "1250000000000000000", got.String())
}

func TestApplyAdjustment_ScenarioB(t *testing.T) {
	e := domain.NewEngine()
	s := snapshot(1300)

	assert.ErrorIs(t, e.Validate(s, now), domain.ErrEmergencyVolatility)
	assert.True(t, e.ShouldPause(s))
	assert.True(t, e.ApplyAdjustment(oneEth, s).IsZero())
}

func TestApplyAdjustment_Clamping(t *testing.T) {
	e := domain.NewEngine()
	s := snapshot(350)

	assert.True(t, e.ApplyAdjustment(decimal.Zero, s).Equal(tenthEth), "zero resolves to min")
	assert.True(t, e.ApplyAdjustment(fiveEth.Mul(decimal.NewFromInt(3)), s).Equal(fiveEth))
	assert.True(t, e.ApplyAdjustment(decimal.NewFromInt(1), s).Equal(tenthEth))
}

func TestApplyAdjustment_StaysWithinBounds(t *testing.T) {
	e := domain.NewEngine()
	amounts := []decimal.Decimal{
		decimal.Zero, decimal.NewFromInt(1), tenthEth, oneEth, fiveEth,
		fiveEth.Mul(decimal.NewFromInt(1000)),
	}
	for c := uint64(0); c <= 1200; c += 25 {
		s := snapshot(c)
		for _, a := range amounts {
			got := e.ApplyAdjustment(a, s)
			require.True(t, got.GreaterThanOrEqual(s.MinExecutionSize), "current=%d amount=%s", c, a)
			require.True(t, got.LessThanOrEqual(s.MaxExecutionSize), "current=%d amount=%s", c, a)
		}
	}
}

func TestAssess(t *testing.T) {
	e := domain.NewEngine()

	s := snapshot(1000)
	s.LastUpdateTime = now - 7200
	a := e.Assess(s, now)
	assert.False(t, a.Valid())
	assert.ErrorIs(t, a.ValidationError, domain.ErrStaleVolatilityData)
	assert.Equal(t, uint64(7200), a.AgeSeconds)
	assert.Len(t, a.Warnings, 2)

	ok := e.Assess(snapshot(350), now)
	assert.True(t, ok.Valid())
	assert.Empty(t, ok.Warnings)
	assert.Equal(t, uint64(100), ok.AdjustmentFactor)
	assert.False(t, ok.ShouldPause)
}

func TestSnapshotCodec_RoundTrip(t *testing.T) {
	s := snapshot(350)
	s.ConservativeMode = true

	raw, err := domain.EncodeSnapshot(s)
	require.NoError(t, err)

	back, err := domain.DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, s.BaselineVolatility, back.BaselineVolatility)
	assert.Equal(t, s.CurrentVolatility, back.CurrentVolatility)
	assert.Equal(t, s.VolatilityThreshold, back.VolatilityThreshold)
	assert.Equal(t, s.EmergencyThreshold, back.EmergencyThreshold)
	assert.True(t, s.MaxExecutionSize.Equal(back.MaxExecutionSize))
	assert.True(t, s.MinExecutionSize.Equal(back.MinExecutionSize))
	assert.Equal(t, s.LastUpdateTime, back.LastUpdateTime)
	assert.True(t, back.ConservativeMode)

	again, err := domain.EncodeSnapshot(back)
	require.NoError(t, err)
	assert.Equal(t, raw, again, "encoding is canonical")
}

func TestSnapshotCodec_Rejections(t *testing.T) {
	_, err := domain.DecodeSnapshot(payload.Seal(payload.KindTWAP, nil))
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)

	_, err = domain.DecodeSnapshot(payload.Seal(payload.KindVolatility, []byte{0x08, 0x01}))
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)

	_, err = domain.DecodeSnapshot(nil)
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
}
