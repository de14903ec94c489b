package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/shopeasy/gateway"
	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/grpc"
	"github.com/example/shopeasy/pkg/repository"
	"go.uber.org/zap"
)

// backends are the storage components chosen by the storage config.
type backends struct {
	store   repository.Store
	orders  repository.OrderList
	audit   repository.Auditor
	history gateway.AuditHistory
	probes  map[string]grpc.Probe
	closers []func() error
}

func openBackends(cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{probes: make(map[string]grpc.Probe)}

	switch cfg.Storage.Backend {
	case "", "memory":
		b.store = repository.NewMemoryStore()

	case "redis":
		rs := repository.NewRedisStore(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
		b.store = rs
		b.probes["redis"] = rs.Ping

	case "etcd":
		es, err := repository.NewEtcdStore(&cfg.Etcd)
		if err != nil {
			return nil, err
		}
		b.store = es
		b.probes["etcd"] = es.Ping

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	b.closers = append(b.closers, b.store.Close)

	switch cfg.Storage.Orders {
	case "", "kv":
		b.orders = repository.NewKVOrderList(b.store)

	case "mysql":
		sql, err := repository.NewSQLOrderList(&cfg.MySQL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.orders = sql
		b.probes["mysql"] = sql.Ping
		b.closers = append(b.closers, sql.Close)

	default:
		b.Close()
		return nil, fmt.Errorf("unknown order backend %q", cfg.Storage.Orders)
	}

	b.audit = repository.NopAuditor{}
	if cfg.Storage.Audit {
		ma, err := repository.NewMongoAuditor(&cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, audit disabled", zap.Error(err))
		} else {
			b.audit = ma
			b.history = ma
			b.probes["mongodb"] = ma.Ping
			b.closers = append(b.closers, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return ma.Close(ctx)
			})
		}
	}

	return b, nil
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}
