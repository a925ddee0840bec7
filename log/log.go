package log

import (
	"sync/atomic"

	"github.com/nbti/nbadmin/log/logger"
)

var defaultLogger atomic.Pointer[logger.Logger]

func init() {
	// 默认向终端输出 text 格式日志
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(l)
}

func Default() logger.Logger {
	return *defaultLogger.Load()
}

// SetDefault 替换全局默认日志器，serve 启动时按配置调用
func SetDefault(l logger.Logger) {
	defaultLogger.Store(&l)
}

func NewLoggerWithOptions(options *logger.SLogOptions) (logger.Logger, error) {
	return logger.NewSLogWithOptions(options)
}
