package assert

import (
	"fmt"
	"reflect"
)

func formatMsg(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// isNil also catches a typed nil pointer boxed in an interface, which a bare
// == nil comparison misses.
func isNil(obj any) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func NotNil(obj any, format string, args ...interface{}) {
	if isNil(obj) {
		panic(formatMsg(format, args...))
	}
}

func IsNil(obj any, format string, args ...interface{}) {
	if !isNil(obj) {
		panic(formatMsg(format, args...))
	}
}
