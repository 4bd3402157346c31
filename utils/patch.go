package utils

import (
	"reflect"
	"strconv"
	"strings"
)

// Patch normalizes a pointer-field update DTO and returns its set fields keyed by json name,
// ready for gorm's Updates. Nil pointers and fields tagged json:"-" are left out.
func Patch(dto any) map[string]any {
	NormalizePtrDTO(dto)
	s, ok := structOf(dto)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, s.NumField())
	for _, sf := range reflect.VisibleFields(s.Type()) {
		fv := s.FieldByIndex(sf.Index)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		column, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if column == "" || column == "-" {
			continue
		}
		out[column] = fv.Elem().Interface()
	}
	return out
}

// ParseIntDefault parses a non-negative integer query value, falling back to def.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}
