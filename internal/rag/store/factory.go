package store

import (
	"context"
	"fmt"

	"github.com/kart-io/campus-qa/pkg/component/milvus"
	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
	storeopts "github.com/kart-io/campus-qa/pkg/options/store"
)

// New 按配置创建向量存储并确保集合存在。
func New(ctx context.Context, opts *storeopts.Options, mopts *milvusopts.Options) (VectorStore, error) {
	var (
		s   VectorStore
		err error
	)
	switch opts.Backend {
	case storeopts.BackendMilvus:
		var client *milvus.Client
		client, err = milvus.New(ctx, mopts)
		if err != nil {
			return nil, err
		}
		s = NewMilvusStore(client)
	case storeopts.BackendSQLite:
		s, err = NewSQLiteStore(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if err := s.EnsureCollection(ctx, opts.Collection, opts.Dimension); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}
