package feeders

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// tagKey returns the lookup key for a struct field under tag, falling back to
// the field name. ok is false for fields tagged "-".
func tagKey(field reflect.StructField, tag string) (string, bool) {
	value := field.Tag.Get(tag)
	if value == "-" {
		return "", false
	}
	if name := strings.Split(value, ",")[0]; name != "" {
		return name, true
	}
	return field.Name, true
}

// assignStruct populates rv from a generic map, keyed by the given struct tag.
// Keys missing from data leave fields untouched.
func assignStruct(rv reflect.Value, data map[string]any, tag, prefix string) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		key, ok := tagKey(sf, tag)
		if !ok {
			continue
		}
		value, exists := data[key]
		if !exists {
			continue
		}
		path := sf.Name
		if prefix != "" {
			path = prefix + "." + sf.Name
		}
		if err := assignValue(field, value, tag, path); err != nil {
			return err
		}
	}
	return nil
}

func assignValue(field reflect.Value, value any, tag, path string) error {
	if value == nil {
		return nil
	}
	switch field.Kind() {
	case reflect.Struct:
		if field.Type() == reflect.TypeOf(time.Time{}) {
			break
		}
		m, ok := value.(map[string]any)
		if !ok {
			return wrapMapError(path, value)
		}
		return assignStruct(field, m, tag, path)
	case reflect.Pointer:
		elem := reflect.New(field.Type().Elem())
		if err := assignValue(elem.Elem(), value, tag, path); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok {
			if s, isString := value.(string); isString {
				return assignString(field, s, path)
			}
			return wrapArrayError(path, value)
		}
		out := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, item := range items {
			if err := assignValue(out.Index(i), item, tag, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	case reflect.Map:
		m, ok := value.(map[string]any)
		if !ok {
			return wrapMapError(path, value)
		}
		out := reflect.MakeMapWithSize(field.Type(), len(m))
		for k, v := range m {
			elem := reflect.New(field.Type().Elem()).Elem()
			if err := assignValue(elem, v, tag, path+"."+k); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(field.Type().Key()), elem)
		}
		field.Set(out)
		return nil
	case reflect.Interface:
		field.Set(reflect.ValueOf(value))
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	if isNumeric(rv.Kind()) && isNumeric(field.Kind()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}
	return assignString(field, fmt.Sprint(value), path)
}

// assignString converts a textual value into the field's type. Slices accept
// comma-separated lists.
func assignString(field reflect.Value, s, path string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return wrapConvertError(s, path, err)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.Slice:
		var parts []string
		if strings.TrimSpace(s) != "" {
			parts = strings.Split(s, ",")
		}
		out := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := assignString(out.Index(i), strings.TrimSpace(part), path); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	case field.Kind() == reflect.Pointer:
		elem := reflect.New(field.Type().Elem())
		if err := assignString(elem.Elem(), s, path); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	converted, err := cast.FromType(s, field.Type())
	if err != nil {
		return wrapConvertError(s, path, err)
	}
	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
