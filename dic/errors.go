package dic

import "fmt"

// ConfigLoadError 字典文件缺失或格式错误，启动时致命
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load table dictionary %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// TableNotFoundError 请求引用了字典中不存在的表
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found in dictionary", e.Table)
}

// FieldNotFoundError 请求引用了表中不存在的字段
type FieldNotFoundError struct {
	Table string
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %s not found in table %s", e.Field, e.Table)
}
