package main

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ErrAttribute is returned when a dotted attribute path cannot be resolved
// or assigned.
var ErrAttribute = errors.New("attr: cannot resolve attribute")

// RGetAttr resolves a dotted path such as "algo.optim_params.learning_rate"
// against obj. Each segment selects a struct field or a string map key;
// pointers and interfaces along the way are followed.
//
// Struct fields match by exact name first, then by the CamelCase form of a
// snake_case segment, then case-insensitively.
func RGetAttr(obj any, path string) (any, error) {
	v, err := resolvePath(reflect.ValueOf(obj), path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// RGetAttrOr is RGetAttr returning def when any segment is missing.
func RGetAttrOr(obj any, path string, def any) any {
	v, err := RGetAttr(obj, path)
	if err != nil {
		return def
	}
	return v
}

// RSetAttr assigns val at the dotted path. obj must be a pointer (or contain
// pointers/maps along the path) so the final segment is settable. String
// values are converted to the target's kind, which lets command line
// overrides set numbers, bools, durations and comma-separated slices.
func RSetAttr(obj any, path string, val any) error {
	parent := reflect.ValueOf(obj)
	name := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		var err error
		parent, err = resolvePath(parent, path[:i])
		if err != nil {
			return err
		}
		name = path[i+1:]
	}

	parent = indirect(parent)
	switch parent.Kind() {
	case reflect.Struct:
		f, ok := lookupField(parent, name)
		if !ok {
			return errors.Wrapf(ErrAttribute, "%s: no field %q", path, name)
		}
		if !f.CanSet() {
			return errors.Wrapf(ErrAttribute, "%s: field %q is not settable", path, name)
		}
		cv, err := convertValue(val, f.Type())
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		f.Set(cv)
		return nil
	case reflect.Map:
		if parent.Type().Key().Kind() != reflect.String || parent.IsNil() {
			return errors.Wrapf(ErrAttribute, "%s: cannot assign into %s", path, parent.Type())
		}
		cv, err := convertValue(val, parent.Type().Elem())
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		parent.SetMapIndex(reflect.ValueOf(name).Convert(parent.Type().Key()), cv)
		return nil
	default:
		return errors.Wrapf(ErrAttribute, "%s: cannot assign into %s", path, parent.Kind())
	}
}

func resolvePath(v reflect.Value, path string) (reflect.Value, error) {
	if path == "" {
		return v, nil
	}
	for _, seg := range strings.Split(path, ".") {
		v = indirect(v)
		switch v.Kind() {
		case reflect.Struct:
			f, ok := lookupField(v, seg)
			if !ok {
				return reflect.Value{}, errors.Wrapf(ErrAttribute, "%s: no field %q", path, seg)
			}
			v = f
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return reflect.Value{}, errors.Wrapf(ErrAttribute, "%s: map keyed by %s", path, v.Type().Key())
			}
			e := v.MapIndex(reflect.ValueOf(seg).Convert(v.Type().Key()))
			if !e.IsValid() {
				return reflect.Value{}, errors.Wrapf(ErrAttribute, "%s: no key %q", path, seg)
			}
			v = e
		default:
			return reflect.Value{}, errors.Wrapf(ErrAttribute, "%s: cannot select %q from %s", path, seg, v.Kind())
		}
	}
	if !v.IsValid() {
		return reflect.Value{}, errors.Wrapf(ErrAttribute, "%s: invalid value", path)
	}
	return v, nil
}

// indirect follows pointers and interfaces until a concrete value or nil.
func indirect(v reflect.Value) reflect.Value {
	for (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func lookupField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for _, candidate := range []string{name, strcase.ToCamel(name)} {
		if sf, ok := t.FieldByName(candidate); ok && sf.IsExported() {
			return v.FieldByIndex(sf.Index), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && strings.EqualFold(sf.Name, strings.ReplaceAll(name, "_", "")) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

var durationType = reflect.TypeOf(time.Duration(0))

func convertValue(val any, t reflect.Type) (reflect.Value, error) {
	if val == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.Wrapf(ErrAttribute, "cannot assign nil to %s", t)
	}

	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	s, isString := val.(string)
	if !isString {
		if isNumberKind(rv.Kind()) && isNumberKind(t.Kind()) {
			return convertNumber(rv, t)
		}
		// Convert would turn an integer into a rune string.
		if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, errors.Wrapf(ErrAttribute, "cannot assign %T to %s", val, t)
	}

	var (
		out any
		err error
	)
	switch {
	case t == durationType:
		out, err = cast.ToDurationE(s)
	case t.Kind() == reflect.Bool:
		out, err = cast.ToBoolE(s)
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		out, err = cast.ToInt64E(s)
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		out, err = cast.ToUint64E(s)
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		out, err = cast.ToFloat64E(s)
	case t.Kind() == reflect.Slice:
		return convertSlice(s, t)
	default:
		return reflect.Value{}, errors.Wrapf(ErrAttribute, "cannot convert %q to %s", s, t)
	}
	if err != nil {
		return reflect.Value{}, errors.Wrapf(ErrAttribute, "convert %q to %s: %v", s, t, err)
	}
	if isNumberKind(t.Kind()) {
		return convertNumber(reflect.ValueOf(out), t)
	}
	return reflect.ValueOf(out).Convert(t), nil
}

func isIntKind(k reflect.Kind) bool   { return k >= reflect.Int && k <= reflect.Int64 }
func isUintKind(k reflect.Kind) bool  { return k >= reflect.Uint && k <= reflect.Uintptr }
func isFloatKind(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || isFloatKind(k)
}

// convertNumber converts between numeric kinds, refusing anything that
// would lose information: fractional floats into integers, negative values
// into unsigned types, and values outside the range of t.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	lossy := errors.Wrapf(ErrAttribute, "%v does not fit in %s", rv.Interface(), t)

	switch {
	case isIntKind(t.Kind()):
		var i int64
		switch {
		case isIntKind(rv.Kind()):
			i = rv.Int()
		case isUintKind(rv.Kind()):
			if rv.Uint() > math.MaxInt64 {
				return reflect.Value{}, lossy
			}
			i = int64(rv.Uint())
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return reflect.Value{}, lossy
			}
			i = int64(f)
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, lossy
		}
		out.SetInt(i)

	case isUintKind(t.Kind()):
		var u uint64
		switch {
		case isIntKind(rv.Kind()):
			if rv.Int() < 0 {
				return reflect.Value{}, lossy
			}
			u = uint64(rv.Int())
		case isUintKind(rv.Kind()):
			u = rv.Uint()
		default:
			f := rv.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return reflect.Value{}, lossy
			}
			u = uint64(f)
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, lossy
		}
		out.SetUint(u)

	default:
		var f float64
		switch {
		case isIntKind(rv.Kind()):
			f = float64(rv.Int())
		case isUintKind(rv.Kind()):
			f = float64(rv.Uint())
		default:
			f = rv.Float()
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, lossy
		}
		out.SetFloat(f)
	}
	return out, nil
}

// convertSlice parses a comma-separated list. An empty string yields an
// empty slice.
func convertSlice(s string, t reflect.Type) (reflect.Value, error) {
	out := reflect.MakeSlice(t, 0, 0)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		e, err := convertValue(strings.TrimSpace(part), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, e)
	}
	return out, nil
}
