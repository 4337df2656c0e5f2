package gormrepo

import (
	"context"

	"agentbridge/internal/app/ports"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs a function in one transaction; repositories called with
// the derived context join it through dbFrom.
type TxManager struct {
	db *gorm.DB
}

var _ ports.TxManager = TxManager{}

func NewTxManager(db *gorm.DB) TxManager {
	return TxManager{db: db}
}

func (t TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFrom returns the transaction bound to ctx, or base scoped to ctx.
func dbFrom(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return base.WithContext(ctx)
}
