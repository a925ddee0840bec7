package rdb

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/rdb/query"
	"github.com/pkg/errors"
)

// IDGenerator sequence 为空时生成随机标识，否则取命名序列的下一个值
type IDGenerator interface {
	NewID(ctx context.Context, sequence string) (any, error)
}

// Record 一条待写入的记录，键为字段别名或列名
type Record map[string]any

// Get 键不区分大小写
func (r Record) Get(key string) (string, any, bool) {
	if v, ok := r[key]; ok {
		return key, v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return k, v, true
		}
	}
	return "", nil, false
}

// Mutator 执行写操作，自身不持有事务
type Mutator struct {
	builder   *Builder
	ids       IDGenerator
	formatter *Formatter
}

func NewMutator(builder *Builder, ids IDGenerator, formatter *Formatter) *Mutator {
	if formatter == nil {
		formatter = NewFormatter(nil)
	}
	return &Mutator{builder: builder, ids: ids, formatter: formatter}
}

// ResolveID 记录中没有主键时生成一个并写回记录
func (m *Mutator) ResolveID(ctx context.Context, table *dic.TableMetadata, rec Record) (any, error) {
	key := table.PrimaryKeyKey()
	if k, v, ok := rec.Get(key); ok && !query.IsEmpty(v) {
		if k != key {
			delete(rec, k)
			rec[key] = v
		}
		return v, nil
	}
	if m.ids == nil {
		return nil, &MutationError{Table: table.Name, Op: OpSequence, Err: errors.New("no id generator")}
	}
	id, err := m.ids.NewID(ctx, table.Generator)
	if err != nil {
		return nil, &MutationError{Table: table.Name, Op: OpSequence, Err: err}
	}
	rec[key] = id
	return id, nil
}

// Upsert 按主键探测存在性后 UPDATE 或 INSERT，返回主键值；table 取自调用方持有的字典快照
func (m *Mutator) Upsert(ctx context.Context, ex Executor, table *dic.TableMetadata, rec Record) (any, error) {
	id, err := m.ResolveID(ctx, table, rec)
	if err != nil {
		return nil, err
	}
	key := strings.ToUpper(query.Text(id))

	columns, values, err := m.columns(table, rec)
	if err != nil {
		return nil, err
	}

	exists, err := m.exists(ctx, ex, table, key)
	if err != nil {
		return nil, err
	}

	if exists {
		ub := m.builder.Dialect().Builder().Update(table.Name)
		n := 0
		for i, c := range columns {
			if c == table.PrimaryKey {
				continue
			}
			ub = ub.Set(c, values[i])
			n++
		}
		if n == 0 {
			return id, nil
		}
		sql, args, err := ub.Where(sq.Eq{table.PrimaryKey: key}).ToSql()
		if err != nil {
			return nil, &MutationError{Table: table.Name, Op: OpUpdate, Err: err}
		}
		if _, err := ex.ExecContext(ctx, sql, args...); err != nil {
			return nil, &MutationError{Table: table.Name, Op: OpUpdate, Err: err}
		}
		return id, nil
	}

	sql, args, err := m.builder.Dialect().Builder().Insert(table.Name).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return nil, &MutationError{Table: table.Name, Op: OpInsert, Err: err}
	}
	if _, err := ex.ExecContext(ctx, sql, args...); err != nil {
		return nil, &MutationError{Table: table.Name, Op: OpInsert, Err: err}
	}
	return id, nil
}

func (m *Mutator) exists(ctx context.Context, ex Executor, table *dic.TableMetadata, key string) (bool, error) {
	sql, args, err := m.builder.Dialect().Builder().
		Select("1").From(table.Name).Where(sq.Eq{table.PrimaryKey: key}).Limit(1).ToSql()
	if err != nil {
		return false, &MutationError{Table: table.Name, Op: OpProbe, Err: err}
	}
	rows, err := QueryRows(ctx, ex, sql, args...)
	if err != nil {
		return false, &MutationError{Table: table.Name, Op: OpProbe, Err: err}
	}
	return len(rows) > 0, nil
}

// columns 按字典字段顺序取记录中已声明的键；LOOKUP_ 和未声明的键忽略，主键总是写入
func (m *Mutator) columns(table *dic.TableMetadata, rec Record) ([]string, []any, error) {
	upper := make(map[string]any, len(rec))
	for k, v := range rec {
		k = strings.ToUpper(strings.TrimSpace(k))
		if strings.HasPrefix(k, dic.LookupPrefix) {
			continue
		}
		upper[k] = v
	}

	var columns []string
	var values []any
	seen := map[string]bool{}
	for _, f := range table.Fields {
		v, ok := upper[f.AliasName]
		if !ok {
			v, ok = upper[f.Name]
		}
		if !ok || seen[f.Name] {
			continue
		}
		value, err := m.formatter.Value(f, v)
		if err != nil {
			return nil, nil, err
		}
		seen[f.Name] = true
		columns = append(columns, f.Name)
		values = append(values, value)
	}

	if !seen[table.PrimaryKey] {
		if v, ok := upper[table.PrimaryKeyKey()]; ok {
			if s, isString := v.(string); isString {
				v = strings.ToUpper(s)
			}
			columns = append([]string{table.PrimaryKey}, columns...)
			values = append([]any{v}, values...)
		}
	}
	return columns, values, nil
}

// Delete 按参数删除，再用同样的参数级联删除子表；没有任何条件时拒绝执行。
// 整个级联只使用 dict 这一个快照
func (m *Mutator) Delete(ctx context.Context, ex Executor, dict *dic.Dictionary, tableName string, params Params) error {
	return m.delete(ctx, ex, dict, tableName, params, map[string]bool{})
}

func (m *Mutator) delete(ctx context.Context, ex Executor, dict *dic.Dictionary, tableName string, params Params, visited map[string]bool) error {
	table, err := dict.Get(tableName)
	if err != nil {
		return err
	}
	if visited[table.Name] {
		return nil
	}
	visited[table.Name] = true

	filters := params.Filters()
	if len(filters) == 0 {
		return errors.Wrapf(ErrEmptyFilter, "delete from %s", table.Name)
	}

	w, err := m.builder.where(ctx, table, filters, nil, false)
	if err != nil {
		return err
	}
	where, args, err := w.cond.ToSQL()
	if err != nil {
		return err
	}
	sql, args, err := m.builder.Dialect().Builder().Delete(table.Name).Where(where, args...).ToSql()
	if err != nil {
		return &MutationError{Table: table.Name, Op: OpDelete, Err: err}
	}
	if _, err := ex.ExecContext(ctx, sql, args...); err != nil {
		return &MutationError{Table: table.Name, Op: OpDelete, Err: err}
	}

	for _, child := range table.ChildrenTables {
		if err := m.delete(ctx, ex, dict, child, params, visited); err != nil {
			return errors.WithMessagef(err, "cascade from %s", table.Name)
		}
	}
	return nil
}
