// Package server 把表字典中的每张表暴露为 REST 资源
package server

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nbti/nbadmin/acesso"
	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/nbti/nbadmin/rdb"
)

type Options struct {
	Addr            string        `cfg:"addr" def:":8080"`
	ReadTimeout     time.Duration `cfg:"readTimeout" def:"30s"`
	WriteTimeout    time.Duration `cfg:"writeTimeout" def:"60s"`
	IdleTimeout     time.Duration `cfg:"idleTimeout" def:"120s"`
	ShutdownTimeout time.Duration `cfg:"shutdownTimeout" def:"10s"`

	// UserHeader 调用方用户标识所在的请求头
	UserHeader  string `cfg:"userHeader" def:"GUID_USUARIO"`
	AllowOrigin string `cfg:"allowOrigin" def:"*"`
	MetricsName string `cfg:"metricsName" def:"nbadmin"`
}

type Server struct {
	options  *Options
	engine   *rdb.Engine
	acesso   *acesso.Service
	logger   logger.Logger
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	metrics  *httpMetrics
	router   *mux.Router
	handler  http.Handler
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRegistry 指标注册和 /metrics 输出使用同一个 registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.gatherer = reg
	}
}

// WithAcesso 未设置时权限只读接口返回 404
func WithAcesso(svc *acesso.Service) Option {
	return func(s *Server) {
		s.acesso = svc
	}
}

func NewServer(options *Options, engine *rdb.Engine, opts ...Option) (*Server, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	s := &Server{
		options:  options,
		engine:   engine,
		logger:   log.Default(),
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.options.UserHeader == "" {
		s.options.UserHeader = "GUID_USUARIO"
	}
	if s.options.AllowOrigin == "" {
		s.options.AllowOrigin = "*"
	}
	if s.options.MetricsName == "" {
		s.options.MetricsName = "nbadmin"
	}

	m, err := newHTTPMetrics(s.options.MetricsName, s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	s.router = s.newRouter()
	s.handler = s.logging(s.recovery(s.cors(s.router)))
	return s, nil
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config/dicionario", s.handleDictionary).Methods(http.MethodGet)

	api.HandleFunc("/system/TableWithChildren/{list}", s.handleFetchMany).Methods(http.MethodGet)
	api.HandleFunc("/system/TableWithChildren{slash:/?}", s.handleApplyNested).Methods(http.MethodPost)

	api.HandleFunc("/ACESSO/ACESSO_TELA", s.handleScreens).Methods(http.MethodGet)
	api.HandleFunc("/ACESSO/USUARIOGRUPO/TableWithChildren/{list}", s.handleFetchMany).Methods(http.MethodGet)
	api.HandleFunc("/ACESSO/USUARIOGRUPO/TableWithChildren{slash:/?}", s.handleApplyPermissions).Methods(http.MethodPost)
	api.HandleFunc("/ACESSO/USUARIOGRUPO/USUARIOGRUPO_X_PERMISSAO/{guid}", s.handleGroupPermissions).Methods(http.MethodGet)
	api.HandleFunc("/ACESSO/USUARIOGRUPO/LIST_ACESSO/{id}", s.handleUserAccess).Methods(http.MethodGet)

	api.HandleFunc("/{resource}/{table}", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/{resource}/{table}", s.handleSave).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/{resource}/{table}/{id}", s.handleDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, &ErrorResponse{Code: http.StatusNotFound, Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, &ErrorResponse{Code: http.StatusMethodNotAllowed, Error: "method not allowed"})
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Route 一条对外的路由
type Route struct {
	Method string
	Path   string
}

// Routes 当前字典下的全部路由
func (s *Server) Routes() []Route {
	return Routes(s.engine.Dictionary())
}

// Routes 固定路由加上字典中每张表展开后的路由，不需要数据库
func Routes(d *dic.Dictionary) []Route {
	skeleton := &Server{options: &Options{}, logger: logger.NewNop(), gatherer: prometheus.NewRegistry()}
	var routes []Route
	_ = skeleton.newRouter().Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		if strings.Contains(tpl, "{resource}") {
			return nil
		}
		tpl = strings.ReplaceAll(tpl, "{slash:/?}", "")
		for _, m := range methods {
			routes = append(routes, Route{Method: m, Path: tpl})
		}
		return nil
	})
	return append(routes, TableRoutes(d)...)
}

// TableRoutes 每张声明了 resource 的表对应查询、写入和删除三组路由
func TableRoutes(d *dic.Dictionary) []Route {
	var routes []Route
	for _, t := range d.Tables() {
		if t.Resource == "" {
			continue
		}
		base := "/api/" + t.Resource + "/" + t.Name
		routes = append(routes,
			Route{Method: http.MethodGet, Path: base},
			Route{Method: http.MethodPost, Path: base},
			Route{Method: http.MethodPut, Path: base},
			Route{Method: http.MethodDelete, Path: base + "/{id}"},
		)
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Path < routes[j].Path
	})
	return routes
}

// ListenAndServe ctx 取消后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.options.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
		IdleTimeout:  s.options.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", "addr", s.options.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}
