package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/db"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// OptionModel 期权账本表
type OptionModel struct {
	gorm.Model
	OptionID          string          `gorm:"column:option_id;type:char(66);uniqueIndex;not null"`
	OrderHash         string          `gorm:"column:order_hash;type:char(66);index;not null"`
	StrikePrice       decimal.Decimal `gorm:"column:strike_price;type:decimal(78,0);not null"`
	Expiration        uint64          `gorm:"column:expiration;not null"`
	PremiumPaid       decimal.Decimal `gorm:"column:premium_paid;type:decimal(78,0);not null"`
	IsCall            bool            `gorm:"column:is_call;not null"`
	Holder            string          `gorm:"column:holder;type:char(42);index;not null"`
	Seller            string          `gorm:"column:seller;type:char(42);not null"`
	IsExercised       bool            `gorm:"column:is_exercised;not null;default:false"`
	ExercisedAt       *time.Time      `gorm:"column:exercised_at"`
	ImpliedVolatility uint64          `gorm:"column:implied_volatility;not null"`
	CreationTime      uint64          `gorm:"column:creation_time;not null"`
}

func (OptionModel) TableName() string { return "options" }

func toModel(o *domain.Option) *OptionModel {
	return &OptionModel{
		OptionID:          o.ID.Hex(),
		OrderHash:         o.UnderlyingOrderHash.Hex(),
		StrikePrice:       o.StrikePrice,
		Expiration:        o.Expiration,
		PremiumPaid:       o.PremiumPaid,
		IsCall:            o.IsCall,
		Holder:            o.OptionHolder.Hex(),
		Seller:            o.OptionSeller.Hex(),
		IsExercised:       o.IsExercised,
		ImpliedVolatility: o.ImpliedVolatility,
		CreationTime:      o.CreationTime,
	}
}

func (m *OptionModel) toDomain() (*domain.Option, error) {
	id, err := protocol.ParseHash(m.OptionID)
	if err != nil {
		return nil, err
	}
	orderHash, err := protocol.ParseHash(m.OrderHash)
	if err != nil {
		return nil, err
	}
	holder, err := protocol.ParseAddress(m.Holder)
	if err != nil {
		return nil, err
	}
	seller, err := protocol.ParseAddress(m.Seller)
	if err != nil {
		return nil, err
	}
	return &domain.Option{
		ID:                  id,
		StrikePrice:         m.StrikePrice,
		Expiration:          m.Expiration,
		PremiumPaid:         m.PremiumPaid,
		IsCall:              m.IsCall,
		OptionHolder:        holder,
		OptionSeller:        seller,
		IsExercised:         m.IsExercised,
		ImpliedVolatility:   m.ImpliedVolatility,
		CreationTime:        m.CreationTime,
		UnderlyingOrderHash: orderHash,
	}, nil
}

// OptionRepo 基于 MySQL 的期权账本
type OptionRepo struct {
	db *db.DB
}

func NewOptionRepo(d *db.DB) *OptionRepo {
	return &OptionRepo{db: d}
}

var _ domain.Repository = (*OptionRepo)(nil)

// AutoMigrate 建表
func (r *OptionRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&OptionModel{})
}

func (r *OptionRepo) Create(ctx context.Context, o *domain.Option) error {
	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&OptionModel{}).Where("option_id = ?", o.ID.Hex()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrOptionAlreadyExists
		}
		if err := tx.Create(toModel(o)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrOptionAlreadyExists
			}
			return fmt.Errorf("insert option: %w", err)
		}
		return nil
	})
}

func (r *OptionRepo) Get(ctx context.Context, id protocol.Hash) (*domain.Option, error) {
	var m OptionModel
	if err := r.db.WithContext(ctx).Where("option_id = ?", id.Hex()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOptionNotFound
		}
		return nil, err
	}
	return m.toDomain()
}

// MarkExercised 条件更新保证只有一次成功
func (r *OptionRepo) MarkExercised(ctx context.Context, id protocol.Hash) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&OptionModel{}).
		Where("option_id = ? AND is_exercised = ?", id.Hex(), false).
		Updates(map[string]any{"is_exercised": true, "exercised_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrOptionAlreadyExercised
}

func (r *OptionRepo) ListByOrder(ctx context.Context, orderHash protocol.Hash) ([]*domain.Option, error) {
	var models []OptionModel
	if err := r.db.WithContext(ctx).Where("order_hash = ?", orderHash.Hex()).Order("creation_time").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Option, 0, len(models))
	for i := range models {
		o, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
