package cfg

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Bind 把解码后的 map 写入结构体，字段名取 cfg tag，大小写不敏感
func Bind(tree map[string]any, object any) error {
	rv := reflect.ValueOf(object)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return bindValue(tree, rv.Elem(), "")
}

func bindValue(src any, dst reflect.Value, path string) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return bindValue(src, dst.Elem(), path)
	}

	sv := reflect.ValueOf(src)
	if dst.Type() != durationType && sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	if s, ok := src.(string); ok && dst.Kind() != reflect.Struct && dst.Kind() != reflect.Map {
		return wrapPath(setValue(dst, s), path)
	}

	switch dst.Kind() {
	case reflect.Struct:
		m, ok := src.(map[string]any)
		if !ok {
			return errors.Errorf("%s: expected object, got %T", path, src)
		}
		return bindStruct(m, dst, path)
	case reflect.Map:
		m, ok := src.(map[string]any)
		if !ok {
			return errors.Errorf("%s: expected object, got %T", path, src)
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(dst.Type()))
		}
		for k, v := range m {
			item := reflect.New(dst.Type().Elem()).Elem()
			if err := bindValue(v, item, path+"."+k); err != nil {
				return err
			}
			dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), item)
		}
		return nil
	case reflect.Slice:
		items, ok := toSlice(src)
		if !ok {
			return errors.Errorf("%s: expected array, got %T", path, src)
		}
		slice := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := bindValue(item, slice.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		dst.Set(slice)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool, reflect.String:
		if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() != reflect.String {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
		return wrapPath(setValue(dst, fmt.Sprint(src)), path)
	}
	return errors.Errorf("%s: cannot bind %T to %v", path, src, dst.Type())
}

func bindStruct(m map[string]any, dst reflect.Value, path string) error {
	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !dst.Field(i).CanSet() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("cfg"); tag != "" {
			if tag == "-" {
				continue
			}
			name = tag
		}
		v, ok := m[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := bindValue(v, dst.Field(i), strings.TrimPrefix(path+"."+name, ".")); err != nil {
			return err
		}
	}
	return nil
}

func toSlice(src any) ([]any, bool) {
	switch v := src.(type) {
	case []any:
		return v, true
	case string:
		if v == "" {
			return nil, true
		}
		parts := strings.Split(v, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, true
	}
	return nil, false
}

func wrapPath(err error, path string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, path)
}
