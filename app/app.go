// Package app 按配置组装数据库、字典、主键生成、引擎和 HTTP 服务
package app

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nbti/nbadmin/acesso"
	"github.com/nbti/nbadmin/cfg"
	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/nbti/nbadmin/rdb"
	"github.com/nbti/nbadmin/server"
	"github.com/nbti/nbadmin/uid"
)

const EnvPrefix = "NBADMIN"

type DictionaryOptions struct {
	Path string `cfg:"path" def:"config/nbSystem.dic"`
	// Watch 文件变更时重新加载，失败保留旧快照
	Watch bool `cfg:"watch"`
}

type Options struct {
	Server     server.Options        `cfg:"server"`
	Database   rdb.DatabaseOptions   `cfg:"database"`
	Dictionary DictionaryOptions     `cfg:"dictionary"`
	Sequence   uid.Options           `cfg:"sequence"`
	Log        logger.SLogOptions    `cfg:"log"`
	Access     rdb.AccessOptions     `cfg:"access"`
	Permission rdb.PermissionOptions `cfg:"permission"`
}

// LoadOptions 配置文件 < .env < 环境变量 < 默认值
func LoadOptions(path string) (*Options, error) {
	options := &Options{}
	if err := cfg.Load(path, options, cfg.WithDotEnv(".env"), cfg.WithEnvPrefix(EnvPrefix)); err != nil {
		return nil, errors.WithMessage(err, "cfg.Load failed")
	}
	return options, nil
}

type App struct {
	options  *Options
	logger   logger.Logger
	registry *prometheus.Registry
	holder   *dic.Holder
	db       *rdb.DB
	ids      *uid.Generator
	engine   *rdb.Engine
	server   *server.Server
}

// New 任一组件失败时释放已创建的资源
func New(options *Options) (*App, error) {
	a := &App{options: options, registry: prometheus.NewRegistry()}
	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	options := a.options
	l, err := logger.NewSLogWithOptions(&options.Log)
	if err != nil {
		return errors.WithMessage(err, "logger.NewSLogWithOptions failed")
	}
	a.logger = l
	log.SetDefault(l)

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.holder, err = dic.NewHolder(options.Dictionary.Path, dic.WithLogger(l.WithGroup("dic")))
	if err != nil {
		return err
	}

	observer, err := rdb.NewObserverWithOptions(&options.Database.Observe, a.registry, l)
	if err != nil {
		return errors.WithMessage(err, "rdb.NewObserverWithOptions failed")
	}
	a.db, err = rdb.Open(&options.Database, rdb.WithObserver(observer), rdb.WithLogger(l))
	if err != nil {
		return errors.WithMessage(err, "rdb.Open failed")
	}

	a.ids, err = uid.NewGeneratorWithOptions(&options.Sequence, a.db.SQL(), a.db.Dialect().SequenceSQL)
	if err != nil {
		return errors.WithMessage(err, "uid.NewGeneratorWithOptions failed")
	}

	access, err := rdb.NewAccessResolver(a.db, a.db.Dialect(), &options.Access)
	if err != nil {
		return errors.WithMessage(err, "rdb.NewAccessResolver failed")
	}

	a.engine = rdb.NewEngine(a.db, a.holder, a.ids,
		rdb.WithAccess(access),
		rdb.WithPermission(&options.Permission),
		rdb.WithEngineLogger(l),
	)

	svc, err := acesso.NewService(a.db.SQL(), options.Database.Driver, acesso.WithLogger(l))
	if err != nil {
		return errors.WithMessage(err, "acesso.NewService failed")
	}

	a.server, err = server.NewServer(&options.Server, a.engine,
		server.WithLogger(l.WithGroup("http")),
		server.WithRegistry(a.registry),
		server.WithAcesso(svc),
	)
	if err != nil {
		return errors.WithMessage(err, "server.NewServer failed")
	}
	return nil
}

func (a *App) Engine() *rdb.Engine {
	return a.engine
}

func (a *App) Server() *server.Server {
	return a.server
}

// Run 阻塞直到 ctx 取消或服务出错
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.options.Dictionary.Watch {
		g.Go(func() error {
			return a.holder.Watch(ctx)
		})
	}
	g.Go(func() error {
		return a.server.ListenAndServe(ctx)
	})
	return g.Wait()
}

func (a *App) Close() error {
	var errs []error
	if a.ids != nil {
		errs = append(errs, a.ids.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if c, ok := a.logger.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
