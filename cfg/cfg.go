package cfg

import (
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type loadOptions struct {
	envPrefix string
	dotEnv    []string
	environ   []string
}

type Option func(*loadOptions)

// WithEnvPrefix 环境变量覆盖前缀，例如 NBADMIN 对应 NBADMIN_DATABASE_DSN
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = strings.TrimSuffix(strings.ToUpper(prefix), "_") + "_"
	}
}

// WithDotEnv 先加载 .env 文件到进程环境，文件不存在时忽略
func WithDotEnv(files ...string) Option {
	return func(o *loadOptions) {
		o.dotEnv = append(o.dotEnv, files...)
	}
}

// WithEnviron 替换 os.Environ，测试使用
func WithEnviron(environ []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load 依次应用：配置文件 < 环境变量 < def 默认值（仅零值），最后校验
func Load(path string, object any, opts ...Option) error {
	options := &loadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	tree := map[string]any{}
	if path != "" {
		decoded, err := DecodeFile(path)
		if err != nil {
			return err
		}
		tree = decoded
	}

	for _, file := range options.dotEnv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load %s", file)
		}
	}

	if options.envPrefix != "" {
		environ := options.environ
		if environ == nil {
			environ = os.Environ()
		}
		overlayEnv(tree, options.envPrefix, environ)
	}

	if err := Bind(tree, object); err != nil {
		return errors.WithMessage(err, "bind config")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults")
	}
	return Validate(object)
}

func overlayEnv(tree map[string]any, prefix string, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(key), prefix) {
			continue
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		setPath(tree, strings.Split(rest, "_"), value)
	}
}

var validate = validator.New()

// Validate 校验 validate tag
func Validate(object any) error {
	if err := validate.Struct(object); err != nil {
		return errors.Wrap(err, "validate config")
	}
	return nil
}
