package rdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

type DatabaseOptions struct {
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 pgx postgres"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port" def:"3306"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`

	Observe ObserverOptions `cfg:"observe"`
}

// Executor *DB 和 *Tx 都实现，写操作总是在调用方给出的 Executor 上执行
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type DB struct {
	db       *sql.DB
	dialect  *Dialect
	observer *Observer
	logger   logger.Logger
}

type Option func(*DB)

func WithObserver(o *Observer) Option {
	return func(d *DB) {
		d.observer = o
	}
}

func WithLogger(l logger.Logger) Option {
	return func(d *DB) {
		d.logger = l
	}
}

func dataSourceName(options *DatabaseOptions) (string, error) {
	if options.DSN != "" {
		return options.DSN, nil
	}
	switch options.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			options.Username, options.Password, options.Host, options.Port, options.Database, options.Charset), nil
	case "sqlite3":
		return options.Database, nil
	case "pgx", "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			options.Username, options.Password, options.Host, options.Port, options.Database), nil
	}
	return "", errors.Errorf("unsupported driver: %s", options.Driver)
}

func Open(options *DatabaseOptions, opts ...Option) (*DB, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	dsn, err := dataSourceName(options)
	if err != nil {
		return nil, err
	}
	driver := options.Driver
	if driver == "postgres" {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	db.SetMaxOpenConns(options.MaxConns)
	db.SetMaxIdleConns(options.MaxIdle)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	d, err := NewDB(db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewDB 包装已经打开的连接池
func NewDB(db *sql.DB, driver string, opts ...Option) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	d := &DB{db: db, dialect: dialect, logger: log.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.observer == nil {
		d.observer = NewNopObserver()
	}
	return d, nil
}

func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Dialect() *Dialect {
	return d.dialect
}

func (d *DB) Observer() *Observer {
	return d.observer
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := d.observer.observe(ctx, "exec", query, func(ctx context.Context) error {
		var err error
		res, err = d.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := d.observer.observe(ctx, "query", query, func(ctx context.Context) error {
		var err error
		rows, err = d.db.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

// QueryRows 执行查询并把每行读成 列名 -> 值
func QueryRows(ctx context.Context, ex Executor, query string, args ...any) ([]map[string]any, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "columns")
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, errors.Wrap(rows.Err(), "rows")
}
