package repository

import (
	"context"
	"fmt"

	"github.com/example/shopeasy/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore keeps the storefront state as etcd keys under a prefix.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

func NewEtcdStore(cfg *config.EtcdConfig) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		client: cli,
		prefix: cfg.Prefix,
	}, nil
}

func (e *EtcdStore) key(key string) string {
	return e.prefix + key
}

func (e *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := e.client.Get(ctx, e.key(key))
	if err != nil {
		return nil, fmt.Errorf("etcd get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (e *EtcdStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := e.client.Put(ctx, e.key(key), string(value)); err != nil {
		return fmt.Errorf("etcd put failed: %w", err)
	}
	return nil
}

func (e *EtcdStore) Delete(ctx context.Context, key string) error {
	if _, err := e.client.Delete(ctx, e.key(key)); err != nil {
		return fmt.Errorf("etcd delete failed: %w", err)
	}
	return nil
}

func (e *EtcdStore) Close() error {
	return e.client.Close()
}

func (e *EtcdStore) Ping(ctx context.Context) error {
	_, err := e.client.Get(ctx, e.key(KeyCart), clientv3.WithCountOnly())
	return err
}
