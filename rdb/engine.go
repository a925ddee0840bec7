package rdb

import (
	"context"
	"maps"
	"strings"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/pkg/errors"
)

// Engine 组合查询、写入、主从协调和门店权限，只持有只读的依赖
type Engine struct {
	db          *DB
	builder     *Builder
	mutator     *Mutator
	coordinator *Coordinator
	access      StoreResolver
	logger      logger.Logger
}

type engineOptions struct {
	access     StoreResolver
	permission *PermissionOptions
	formatter  *Formatter
	logger     logger.Logger
}

type EngineOption func(*engineOptions)

func WithAccess(r StoreResolver) EngineOption {
	return func(o *engineOptions) {
		o.access = r
	}
}

func WithPermission(p *PermissionOptions) EngineOption {
	return func(o *engineOptions) {
		o.permission = p
	}
}

func WithFormatter(f *Formatter) EngineOption {
	return func(o *engineOptions) {
		o.formatter = f
	}
}

func WithEngineLogger(l logger.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = l
	}
}

func NewEngine(db *DB, source dic.Source, ids IDGenerator, opts ...EngineOption) *Engine {
	o := &engineOptions{logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}
	builder := NewBuilder(source, db.Dialect(), o.logger)
	mutator := NewMutator(builder, ids, o.formatter)
	return &Engine{
		db:          db,
		builder:     builder,
		mutator:     mutator,
		coordinator: NewCoordinator(mutator, o.permission),
		access:      o.access,
		logger:      o.logger,
	}
}

func (e *Engine) DB() *DB {
	return e.db
}

func (e *Engine) Builder() *Builder {
	return e.builder
}

func (e *Engine) Dictionary() *dic.Dictionary {
	return e.builder.Dictionary()
}

// Query 未指定 Access 时使用引擎的门店权限解析
func (e *Engine) Query(ctx context.Context, spec *QuerySpec) ([]map[string]any, error) {
	if spec.Access == nil {
		spec.Access = e.access
	}
	var rows []map[string]any
	err := e.db.Observer().Operation(ctx, "query", spec.Table, func(ctx context.Context) error {
		stmt, err := e.builder.Build(ctx, spec)
		if err != nil {
			return err
		}
		rows, err = QueryRows(ctx, e.db, stmt.SQL, stmt.Args...)
		return errors.Wrapf(err, "query %s", spec.Table)
	})
	return rows, err
}

// Save 在一个事务中写入全部记录，返回各自的主键
func (e *Engine) Save(ctx context.Context, table string, records []Record) ([]any, error) {
	t, err := e.Dictionary().Get(table)
	if err != nil {
		return nil, err
	}
	var ids []any
	err = e.db.Observer().Operation(ctx, "save", t.Name, func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *Tx) error {
			ids = ids[:0]
			for _, rec := range records {
				id, err := e.mutator.Upsert(ctx, tx, t, rec)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Remove 级联删除并提交
func (e *Engine) Remove(ctx context.Context, table string, params Params) error {
	return e.remove(ctx, e.Dictionary(), table, params)
}

func (e *Engine) remove(ctx context.Context, dict *dic.Dictionary, table string, params Params) error {
	return e.db.Observer().Operation(ctx, "remove", table, func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *Tx) error {
			return e.mutator.Delete(ctx, tx, dict, table, params)
		})
	})
}

// RemoveByID 按主键删除
func (e *Engine) RemoveByID(ctx context.Context, table string, id string) error {
	dict := e.Dictionary()
	t, err := dict.Get(table)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return errors.Wrapf(ErrEmptyFilter, "delete from %s", t.Name)
	}
	return e.remove(ctx, dict, t.Name, Params{{Key: t.PrimaryKeyKey(), Value: id}})
}

// ApplyNested 整个报文在一个事务中完成，任一失败全部回滚
func (e *Engine) ApplyNested(ctx context.Context, payload *Payload, filter Params) (map[string]any, error) {
	var result map[string]any
	err := e.db.Observer().Operation(ctx, "nested", payload.masterTable(), func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *Tx) error {
			var err error
			result, err = e.coordinator.ApplyNested(ctx, tx, payload, filter)
			return err
		})
	})
	return result, err
}

func (e *Engine) ApplyPermissions(ctx context.Context, payload *Payload, filter Params) (map[string]any, error) {
	var result map[string]any
	err := e.db.Observer().Operation(ctx, "permissions", payload.masterTable(), func(ctx context.Context) error {
		return e.db.WithTx(ctx, func(tx *Tx) error {
			var err error
			result, err = e.coordinator.ApplyPermissions(ctx, tx, payload, filter)
			return err
		})
	})
	return result, err
}

func (p *Payload) masterTable() string {
	if m := p.Master(); m != nil {
		return m.Table
	}
	return ""
}

// FetchResult 多表查询中的一项
type FetchResult struct {
	Key   string
	Table *dic.TableMetadata
	Rows  []map[string]any
}

// FetchMany list 为逗号分隔的 resource.table|alias，各项使用同一组参数和表的默认排序；
// 同一张表（忽略别名）只查询一次，重复的项拿到各自的行副本
func (e *Engine) FetchMany(ctx context.Context, list string, params Params, userID string) ([]*FetchResult, error) {
	dict := e.Dictionary()
	var results []*FetchResult
	fetched := map[string]*FetchResult{}
	for _, key := range strings.Split(list, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		resource, name, _ := dic.SplitTableKey(key)
		cacheKey := resource + "." + name
		if prev, ok := fetched[cacheKey]; ok {
			results = append(results, &FetchResult{Key: key, Table: prev.Table, Rows: cloneRows(prev.Rows)})
			continue
		}

		table, err := dict.Get(name)
		if err != nil {
			return nil, err
		}
		rows, err := e.Query(ctx, &QuerySpec{
			Table:   table.Name,
			Params:  params,
			OrderBy: table.OrderBy,
			UserID:  userID,
		})
		if err != nil {
			return nil, err
		}
		r := &FetchResult{Key: key, Table: table, Rows: rows}
		fetched[cacheKey] = r
		results = append(results, r)
	}
	return results, nil
}

func cloneRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}
