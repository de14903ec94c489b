package repository

import (
	"context"
	"fmt"

	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SQLOrderList keeps the order list in a MySQL table, one row per order,
// ordered by list position.
type SQLOrderList struct {
	db *gorm.DB
}

func NewSQLOrderList(cfg *config.MySQLConfig) (*SQLOrderList, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewSQLOrderListFromDB(db)
}

func NewSQLOrderListFromDB(db *gorm.DB) (*SQLOrderList, error) {
	if err := db.AutoMigrate(&models.OrderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLOrderList{db: db}, nil
}

func (l *SQLOrderList) ReadAll(ctx context.Context) ([]models.Order, error) {
	var rows []models.OrderRow
	if err := l.db.WithContext(ctx).Order("position asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.Order()
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", row.ID, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// WriteAll replaces the table contents with orders in one transaction.
func (l *SQLOrderList) WriteAll(ctx context.Context, orders []models.Order) error {
	rows := make([]models.OrderRow, 0, len(orders))
	for i, o := range orders {
		row, err := o.ToRow(i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OrderRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear orders: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to write orders: %w", err)
		}
		return nil
	})
}

func (l *SQLOrderList) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *SQLOrderList) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
