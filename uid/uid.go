// Package uid 为写入的记录生成主键：未声明序列时生成 UUID，否则取命名序列的下一个值
package uid

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/nbti/nbadmin/uid/intgen"
	"github.com/nbti/nbadmin/uid/strgen"
)

type Options struct {
	Sequence  string                  `cfg:"sequence" def:"snowflake" validate:"oneof=redis sql snowflake"`
	UUID      strgen.UUIDOptions      `cfg:"uuid"`
	Redis     intgen.RedisOptions     `cfg:"redis"`
	Snowflake intgen.SnowflakeOptions `cfg:"snowflake"`
	// Statement 为空时使用数据库方言默认的取值语句
	Statement string `cfg:"statement"`
}

type Generator struct {
	str strgen.StrGenerator
	seq intgen.Sequence
}

func NewGenerator(str strgen.StrGenerator, seq intgen.Sequence) *Generator {
	return &Generator{str: str, seq: seq}
}

// NewGeneratorWithOptions db 和 statement 只在 sql 序列下使用
func NewGeneratorWithOptions(options *Options, db intgen.Querier, statement string) (*Generator, error) {
	if options == nil {
		options = &Options{Sequence: "snowflake", UUID: strgen.UUIDOptions{Version: "v4", Upper: true}}
	}

	var seq intgen.Sequence
	switch strings.ToLower(options.Sequence) {
	case "redis":
		seq = intgen.NewRedisSequenceWithOptions(&options.Redis)
	case "sql":
		if db == nil {
			return nil, errors.New("sql sequence requires a database")
		}
		if options.Statement != "" {
			statement = options.Statement
		}
		s, err := intgen.NewSQLSequence(db, statement)
		if err != nil {
			return nil, errors.WithMessage(err, "intgen.NewSQLSequence failed")
		}
		seq = s
	case "snowflake", "":
		seq = intgen.NewSnowflakeSequence(&options.Snowflake)
	default:
		return nil, errors.Errorf("unsupported sequence type %q", options.Sequence)
	}

	return NewGenerator(strgen.NewUUIDGeneratorWithOptions(&options.UUID), seq), nil
}

// NewID sequence 为空时返回字符串，否则返回 int64
func (g *Generator) NewID(ctx context.Context, sequence string) (any, error) {
	if strings.TrimSpace(sequence) == "" {
		return g.str.Generate(), nil
	}
	n, err := g.seq.Next(ctx, strings.TrimSpace(sequence))
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Close 释放序列持有的连接
func (g *Generator) Close() error {
	if c, ok := g.seq.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
