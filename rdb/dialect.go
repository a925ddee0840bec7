package rdb

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// Dialect 不同数据库在占位符和序列语句上的差异
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// SequenceSQL 取序列下一个值的语句模板，%s 为序列名；为空表示不支持
	SequenceSQL string
}

var dialects = map[string]*Dialect{
	"sqlite3":  {Name: "sqlite3", Placeholder: sq.Question},
	"mysql":    {Name: "mysql", Placeholder: sq.Question},
	"pgx":      {Name: "pgx", Placeholder: sq.Dollar, SequenceSQL: "SELECT nextval('%s')"},
	"postgres": {Name: "pgx", Placeholder: sq.Dollar, SequenceSQL: "SELECT nextval('%s')"},
}

func DialectFor(driver string) (*Dialect, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return nil, errors.Errorf("unsupported driver: %s", driver)
	}
	return d, nil
}

// Builder 带本方言占位符的 squirrel 构造器
func (d *Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

// Rebind 把 ? 占位符替换为本方言的格式
func (d *Dialect) Rebind(sql string) (string, error) {
	return d.Placeholder.ReplacePlaceholders(sql)
}

// NextValSQL 序列名只允许标识符字符
func (d *Dialect) NextValSQL(sequence string) (string, error) {
	if d.SequenceSQL == "" {
		return "", errors.Errorf("driver %s has no sequences", d.Name)
	}
	if !identPattern.MatchString(sequence) {
		return "", errors.Errorf("invalid sequence name %q", sequence)
	}
	return fmt.Sprintf(d.SequenceSQL, sequence), nil
}
