package cfg

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// DecodeFile 按扩展名解析配置文件，返回键全部小写的嵌套 map
func DecodeFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Decode(strings.ToLower(filepath.Ext(path)), data)
}

// Decode 支持 .json .yaml .yml .toml .ini .env
func Decode(ext string, data []byte) (map[string]any, error) {
	tree := map[string]any{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, errors.Wrap(err, "decode json")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &tree); err != nil {
			return nil, errors.Wrap(err, "decode toml")
		}
	case ".ini":
		file, err := ini.LoadSources(ini.LoadOptions{SpaceBeforeInlineComment: true}, data)
		if err != nil {
			return nil, errors.Wrap(err, "decode ini")
		}
		for _, section := range file.Sections() {
			var path []string
			if section.Name() != ini.DefaultSection {
				path = strings.Split(section.Name(), ".")
			}
			for _, key := range section.Keys() {
				setPath(tree, append(append([]string{}, path...), key.Name()), key.Value())
			}
		}
	case ".env":
		vars, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decode env")
		}
		for k, v := range vars {
			setPath(tree, strings.Split(k, "_"), v)
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	return lowerKeys(tree).(map[string]any), nil
}

func lowerKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[strings.ToLower(k)] = lowerKeys(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s, ok := k.(string); ok {
				out[strings.ToLower(s)] = lowerKeys(item)
			}
		}
		return out
	case []any:
		for i := range val {
			val[i] = lowerKeys(val[i])
		}
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = lowerKeys(val[i])
		}
		return out
	}
	return v
}

// setPath 写入嵌套路径，中间节点不是 map 时覆盖
func setPath(tree map[string]any, path []string, value any) {
	node := tree
	for i, key := range path {
		key = strings.ToLower(key)
		if i == len(path)-1 {
			node[key] = value
			return
		}
		next, ok := node[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[key] = next
		}
		node = next
	}
}
