package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-saga/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// orderRecord maps to the orders table.
type orderRecord struct {
	ID                 string              `gorm:"primaryKey;size:36"`
	CustomerName       string              `gorm:"size:255;not null"`
	TotalAmount        decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	Status             string              `gorm:"size:32;index;not null"`
	CancellationReason sql.NullString      `gorm:"size:512"`
	CreatedAt          time.Time           `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime:false"`
}

func (orderRecord) TableName() string {
	return "orders"
}

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore connects to MySQL and migrates the orders table.
func OpenGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing connection and migrates the orders table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&orderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate orders: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Create(ctx context.Context, o *models.Order) error {
	rec := toRecord(o)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create %s: %w", o.ID, err)
	}
	return nil
}

// Update writes o only while the stored row is not terminal.
func (s *GormStore) Update(ctx context.Context, o *models.Order) error {
	rec := toRecord(o)
	res := s.db.WithContext(ctx).Model(&orderRecord{}).
		Where("id = ? AND status NOT IN ?", o.ID, []string{string(models.OrderStatusPaid), string(models.OrderStatusCancelled)}).
		Updates(map[string]interface{}{
			"total_amount":        rec.TotalAmount,
			"status":              rec.Status,
			"cancellation_reason": rec.CancellationReason,
			"updated_at":          rec.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", o.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports unchanged rows as unaffected, so look at what is stored.
	cur, err := s.Get(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", o.ID, err)
	}
	if cur.Status.IsTerminal() {
		return fmt.Errorf("update %s: %w", o.ID, models.ErrOrderFinalized)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Order, error) {
	var rec orderRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return fromRecord(rec), nil
}

func toRecord(o *models.Order) orderRecord {
	rec := orderRecord{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.TotalAmount != nil {
		rec.TotalAmount = decimal.NullDecimal{Decimal: o.TotalAmount.Decimal, Valid: true}
	}
	if o.CancellationReason != nil {
		rec.CancellationReason = sql.NullString{String: *o.CancellationReason, Valid: true}
	}
	return rec
}

func fromRecord(rec orderRecord) *models.Order {
	o := &models.Order{
		ID:           rec.ID,
		CustomerName: rec.CustomerName,
		Status:       models.OrderStatus(rec.Status),
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
	if rec.TotalAmount.Valid {
		o.TotalAmount = &models.Money{Decimal: rec.TotalAmount.Decimal}
	}
	if rec.CancellationReason.Valid {
		reason := rec.CancellationReason.String
		o.CancellationReason = &reason
	}
	return o
}
