package rdb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/nbti/nbadmin/rdb/query"
	"github.com/pkg/errors"
)

// StoreResolver 给出用户可访问的门店列表
type StoreResolver interface {
	Resolve(ctx context.Context, userID string) (StoreList, error)
}

type QuerySpec struct {
	Table  string
	Params Params
	// OrderBy 参数中的 ORDERBY 优先
	OrderBy string
	Limit   int
	Page    int
	UserID  string
	Access  StoreResolver
}

// Statement 已绑定参数的语句
type Statement struct {
	SQL  string
	Args []interface{}
}

// Builder 把表名和请求参数翻译成 SELECT 语句，除权限查询外没有副作用
type Builder struct {
	source  dic.Source
	dialect *Dialect
	logger  logger.Logger
}

func NewBuilder(source dic.Source, dialect *Dialect, l logger.Logger) *Builder {
	if l == nil {
		l = log.Default()
	}
	return &Builder{source: source, dialect: dialect, logger: l}
}

func (b *Builder) Dictionary() *dic.Dictionary {
	return b.source.Current()
}

func (b *Builder) Dialect() *Dialect {
	return b.dialect
}

func (b *Builder) Build(ctx context.Context, spec *QuerySpec) (*Statement, error) {
	table, err := b.Dictionary().Get(spec.Table)
	if err != nil {
		return nil, err
	}

	sb := b.dialect.Builder().Select(table.Name + ".*").From(table.Name)
	for _, f := range table.LookupFields() {
		alias, rel := f.LookupAlias(), f.Relationship
		sb = sb.Column(fmt.Sprintf("%s.%s AS %s", alias, rel.DisplayField, alias))
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON (%s.%s = %s.%s)",
			rel.ParentTable, alias, alias, rel.ParentKey, table.Name, f.Name))
	}

	w, err := b.where(ctx, table, spec.Params, spec, true)
	if err != nil {
		return nil, err
	}
	where, args, err := w.cond.ToSQL()
	if err != nil {
		return nil, err
	}
	sb = sb.Where(where, args...)

	orderBy := spec.OrderBy
	if w.orderBy != "" {
		orderBy = w.orderBy
	}
	terms, err := b.orderBy(table, orderBy)
	if err != nil {
		return nil, err
	}
	if len(terms) > 0 {
		sb = sb.OrderBy(terms...)
	}

	limit, page := spec.Limit, spec.Page
	if w.limit != nil {
		limit = *w.limit
	}
	if w.page != nil {
		page = *w.page
	}
	if limit > 0 {
		sb = sb.Limit(uint64(limit)).Offset(uint64(page * limit))
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}
	return &Statement{SQL: sql, Args: args}, nil
}

type whereResult struct {
	cond    *query.BoolQuery
	orderBy string
	limit   *int
	page    *int
}

// where 依次处理每个参数；allowLookup 为 false 时（DELETE）拒绝关联列
func (b *Builder) where(ctx context.Context, table *dic.TableMetadata, params Params, spec *QuerySpec, allowLookup bool) (*whereResult, error) {
	w := &whereResult{cond: &query.BoolQuery{}}
	for _, p := range params {
		c := query.Parse(p.Key, p.Value)
		switch c.Op {
		case query.OpLimit, query.OpLast:
			n, err := nonNegative(p.Key, c.Value)
			if err != nil {
				return nil, err
			}
			if c.Op == query.OpLimit {
				w.limit = &n
			} else {
				w.page = &n
			}
		case query.OpOrderBy:
			w.orderBy = query.Text(c.Value)
		case query.OpAccess:
			field := c.Field
			if field == "" {
				field = strings.ToUpper(strings.TrimSpace(query.Text(c.Value)))
			}
			column, err := b.column(table, field, allowLookup)
			if err != nil {
				return nil, err
			}
			w.cond.Must = append(w.cond.Must, &query.InQuery{Field: column, Values: b.stores(ctx, spec)})
		default:
			column, err := b.column(table, c.Field, allowLookup)
			if err != nil {
				return nil, err
			}
			clause, err := query.NewClause(c.Op, column, c.Value)
			if err != nil {
				return nil, err
			}
			w.cond.Must = append(w.cond.Must, clause)
		}
	}
	return w, nil
}

// stores 任何失败都落到拒绝列表，谓词本身不会被去掉
func (b *Builder) stores(ctx context.Context, spec *QuerySpec) []string {
	if spec == nil || spec.Access == nil {
		return DenyAll()
	}
	list, err := spec.Access.Resolve(ctx, spec.UserID)
	if err != nil {
		b.logger.WarnContext(ctx, "store access denied", "user", spec.UserID, "error", err.Error())
		return DenyAll()
	}
	if len(list) == 0 {
		return DenyAll()
	}
	return list
}

func nonNegative(key string, v any) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(query.Text(v)))
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrInvalidCondition, "%s must be a non-negative integer, got %q", key, query.Text(v))
	}
	return n, nil
}

// column 解析参数中的字段：别名、列名、T.字段、LOOKUP_字段 或 LOOKUP_字段.列
func (b *Builder) column(table *dic.TableMetadata, key string, allowLookup bool) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	prefix, name, dotted := strings.Cut(key, ".")
	if !dotted {
		prefix, name = "", key
	}
	if !identPattern.MatchString(name) {
		return "", &dic.FieldNotFoundError{Table: table.Name, Field: key}
	}

	switch {
	case prefix == "" && strings.HasPrefix(name, dic.LookupPrefix):
		if f := lookupField(table, name); f != nil && allowLookup {
			return name + "." + f.Relationship.DisplayField, nil
		}
	case prefix == "" || prefix == table.Name:
		column, err := table.Column(name)
		if err != nil {
			return "", err
		}
		return table.Name + "." + column, nil
	case strings.HasPrefix(prefix, dic.LookupPrefix):
		if f := lookupField(table, prefix); f != nil && allowLookup {
			return prefix + "." + name, nil
		}
	}
	return "", &dic.FieldNotFoundError{Table: table.Name, Field: key}
}

func lookupField(table *dic.TableMetadata, alias string) *dic.FieldMetadata {
	for _, f := range table.LookupFields() {
		if f.LookupAlias() == alias {
			return f
		}
	}
	return nil
}

var orderTermPattern = regexp.MustCompile(`^([A-Z0-9_$.]+)(?:\s+(ASC|DESC))?$`)

// orderBy 每一项都必须是已声明的字段、别名或 LOOKUP_ 列，可带 ASC/DESC
func (b *Builder) orderBy(table *dic.TableMetadata, raw string) ([]string, error) {
	var terms []string
	for _, term := range strings.Split(raw, ",") {
		term = strings.ToUpper(strings.Join(strings.Fields(term), " "))
		if term == "" {
			continue
		}
		m := orderTermPattern.FindStringSubmatch(term)
		if m == nil {
			return nil, errors.Wrapf(ErrInvalidOrderBy, "%q", term)
		}
		column := m[1]
		if lookupField(table, column) == nil {
			c, err := b.column(table, column, true)
			if err != nil {
				return nil, err
			}
			column = c
		}
		if m[2] != "" {
			column += " " + m[2]
		}
		terms = append(terms, column)
	}
	return terms, nil
}
