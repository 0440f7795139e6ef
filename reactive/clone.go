package reactive

import "reflect"

// Clone returns a deep copy of v. Maps, slices, arrays, pointers and the
// exported fields of structs are copied recursively; values that cannot be
// copied (funcs, channels, unexported struct state) are shared. Cycles and
// shared references are preserved in the copy.
func Clone[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	dst := reflect.New(src.Type()).Elem()
	newCloner().cloneInto(dst, src)
	return dst.Interface().(T)
}

// cloneAny is Clone for untyped state values.
func cloneAny(v any) any {
	if v == nil {
		return nil
	}
	src := reflect.ValueOf(v)
	dst := reflect.New(src.Type()).Elem()
	newCloner().cloneInto(dst, src)
	return dst.Interface()
}

// visit identifies a reference already copied. The type is part of the key
// because a struct and its first field share an address.
type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

type cloner struct {
	seen map[visit]reflect.Value
}

func newCloner() *cloner {
	return &cloner{seen: make(map[visit]reflect.Value)}
}

func (c *cloner) cloneInto(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Interface:
		if src.IsNil() {
			return
		}
		inner := src.Elem()
		cp := reflect.New(inner.Type()).Elem()
		c.cloneInto(cp, inner)
		dst.Set(cp)
	case reflect.Map:
		if src.IsNil() {
			return
		}
		key := visit{ptr: src.Pointer(), typ: src.Type()}
		if done, ok := c.seen[key]; ok {
			dst.Set(done)
			return
		}
		m := reflect.MakeMapWithSize(src.Type(), src.Len())
		c.seen[key] = m
		iter := src.MapRange()
		for iter.Next() {
			val := reflect.New(src.Type().Elem()).Elem()
			c.cloneInto(val, iter.Value())
			m.SetMapIndex(iter.Key(), val)
		}
		dst.Set(m)
	case reflect.Slice:
		if src.IsNil() {
			return
		}
		key := visit{ptr: src.Pointer(), len: src.Len(), typ: src.Type()}
		if done, ok := c.seen[key]; ok {
			dst.Set(done)
			return
		}
		s := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		c.seen[key] = s
		for i := 0; i < src.Len(); i++ {
			c.cloneInto(s.Index(i), src.Index(i))
		}
		dst.Set(s)
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			c.cloneInto(dst.Index(i), src.Index(i))
		}
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		key := visit{ptr: src.Pointer(), typ: src.Type()}
		if done, ok := c.seen[key]; ok {
			dst.Set(done)
			return
		}
		p := reflect.New(src.Type().Elem())
		c.seen[key] = p
		c.cloneInto(p.Elem(), src.Elem())
		dst.Set(p)
	case reflect.Struct:
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			if !src.Type().Field(i).IsExported() {
				continue
			}
			c.cloneInto(dst.Field(i), src.Field(i))
		}
	default:
		dst.Set(src)
	}
}

// equal reports whether two state values are the same. Values whose types
// hold no pointers or interfaces use ==, everything else is compared by
// content with reflect.DeepEqual, so a copy of a pointer value equals the
// original.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() && plainComparable(ta) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// plainComparable reports whether == on t compares content: interface
// fields could hold uncomparable values and pointers compare by address.
func plainComparable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.UnsafePointer:
		return false
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !plainComparable(t.Field(i).Type) {
				return false
			}
		}
	case reflect.Array:
		return plainComparable(t.Elem())
	}
	return true
}
