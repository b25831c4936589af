package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

func newOption(t *testing.T, order protocol.Hash, created uint64) *domain.Option {
	t.Helper()
	o, err := domain.NewOption(domain.CreateParams{
		OrderHash:   order,
		Holder:      protocol.Address{0xAA},
		StrikePrice: decimal.NewFromInt(100),
		Expiration:  created + 3600,
		Premium:     decimal.NewFromInt(1),
		IsCall:      true,
	}, created)
	require.NoError(t, err)
	return o
}

func TestOptionRepo(t *testing.T) {
	ctx := context.Background()
	r := NewOptionRepo()
	o := newOption(t, protocol.Hash{1}, 1000)

	require.NoError(t, r.Create(ctx, o))
	assert.ErrorIs(t, r.Create(ctx, o), domain.ErrOptionAlreadyExists)

	got, err := r.Get(ctx, o.ID)
	require.NoError(t, err)
	got.IsExercised = true
	again, err := r.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, again.IsExercised, "returned copies must not alias the ledger")

	require.NoError(t, r.MarkExercised(ctx, o.ID))
	assert.ErrorIs(t, r.MarkExercised(ctx, o.ID), domain.ErrOptionAlreadyExercised)
	assert.ErrorIs(t, r.MarkExercised(ctx, protocol.Hash{9}), domain.ErrOptionNotFound)

	_, err = r.Get(ctx, protocol.Hash{9})
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)
}

func TestOptionRepo_ListByOrder(t *testing.T) {
	ctx := context.Background()
	r := NewOptionRepo()
	later := newOption(t, protocol.Hash{1}, 2000)
	earlier := newOption(t, protocol.Hash{1}, 1000)
	other := newOption(t, protocol.Hash{2}, 1500)
	for _, o := range []*domain.Option{later, earlier, other} {
		require.NoError(t, r.Create(ctx, o))
	}

	list, err := r.ListByOrder(ctx, protocol.Hash{1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, earlier.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
}
