package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/vectorplus/internal/options/application"
	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

func newCalculator(t *testing.T, f *fixture) *application.Calculator {
	t.Helper()
	return application.NewCalculator(f.repo, slog.New(slog.NewTextHandler(io.Discard, nil)), f.m)
}

// exercisedPayload 创建并行权一份看涨期权，返回账本中的期权及其负载
func exercisedPayload(t *testing.T, f *fixture) (*domain.Option, []byte) {
	t.Helper()
	ctx := context.Background()

	id, err := f.svc.CreateCallOption(ctx, createCmd())
	require.NoError(t, err)
	opt, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	raw, err := domain.EncodeOption(opt)
	require.NoError(t, err)

	f.clock.Store(start + 7200 - 60)
	_, err = f.svc.ExerciseOption(ctx, id, order(), orderHash, d("2200000000000000000000"), holder)
	require.NoError(t, err)
	return opt, raw
}

func TestCalculator_FillsAtStrike(t *testing.T) {
	f := newFixture(t)
	calc := newCalculator(t, f)
	ctx := context.Background()
	_, raw := exercisedPayload(t, f)

	// 4100 / 2050 = 2
	making, err := calc.GetMakingAmount(ctx, order(), orderHash, holder,
		d("4100000000000000000000"), d("5000000000000000000"), raw)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", making.String())

	making, err = calc.GetMakingAmount(ctx, order(), orderHash, holder,
		d("4100000000000000000000"), d("1000000000000000000"), raw)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", making.String())

	taking, err := calc.GetTakingAmount(ctx, order(), orderHash, holder,
		d("1000000000000000000"), d("5000000000000000000"), raw)
	require.NoError(t, err)
	assert.Equal(t, "2050000000000000000000", taking.String())

	// 3 wei * 2050
	taking, err = calc.GetTakingAmount(ctx, order(), orderHash, holder, d("3"), d("5"), raw)
	require.NoError(t, err)
	assert.Equal(t, "6150", taking.String())

	assert.Equal(t, 4.0, testutil.ToFloat64(f.m.StrategyCalls.WithLabelValues(application.StrategyName, "making", "ok"))+
		testutil.ToFloat64(f.m.StrategyCalls.WithLabelValues(application.StrategyName, "taking", "ok")))
}

func TestCalculator_RequiresExercise(t *testing.T) {
	f := newFixture(t)
	calc := newCalculator(t, f)
	ctx := context.Background()

	id, err := f.svc.CreateCallOption(ctx, createCmd())
	require.NoError(t, err)
	opt, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	raw, err := domain.EncodeOption(opt)
	require.NoError(t, err)

	_, err = calc.GetMakingAmount(ctx, order(), orderHash, holder, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, domain.ErrOptionNotExercised)
}

func TestCalculator_LedgerIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	calc := newCalculator(t, f)
	ctx := context.Background()
	opt, _ := exercisedPayload(t, f)

	// 负载声称未行权不影响结果
	claimed := *opt
	claimed.IsExercised = false
	raw, err := domain.EncodeOption(&claimed)
	require.NoError(t, err)
	_, err = calc.GetTakingAmount(ctx, order(), orderHash, holder, d("1"), d("1"), raw)
	assert.NoError(t, err)

	// 篡改行权价
	tampered := *opt
	tampered.StrikePrice = d("1")
	raw, err = domain.EncodeOption(&tampered)
	require.NoError(t, err)
	_, err = calc.GetTakingAmount(ctx, order(), orderHash, holder, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, domain.ErrOptionDataMismatch)

	raw, err = domain.EncodeOption(opt)
	require.NoError(t, err)
	_, err = calc.GetTakingAmount(ctx, order(), protocol.Hash{0x99}, holder, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, domain.ErrOptionDataMismatch)

	_, err = calc.GetTakingAmount(ctx, order(), orderHash, stranger, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, domain.ErrNotOptionHolder)
}

func TestCalculator_UnknownOptionAndBadPayload(t *testing.T) {
	f := newFixture(t)
	calc := newCalculator(t, f)
	ctx := context.Background()

	opt, err := domain.NewOption(domain.CreateParams{
		OrderHash: orderHash, Holder: holder, Seller: maker,
		StrikePrice: d("1"), Expiration: start + 3600, Premium: d("1"), IsCall: true,
	}, start)
	require.NoError(t, err)
	raw, err := domain.EncodeOption(opt)
	require.NoError(t, err)

	_, err = calc.GetMakingAmount(ctx, order(), orderHash, holder, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)

	_, err = calc.GetMakingAmount(ctx, order(), orderHash, holder, d("1"), d("1"), []byte{0xFF})
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)

	_, err = calc.GetMakingAmount(ctx, &protocol.Order{}, orderHash, holder, d("1"), d("1"), raw)
	assert.ErrorIs(t, err, protocol.ErrInvalidOrder)
}
