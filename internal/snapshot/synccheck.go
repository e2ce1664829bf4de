package snapshot

import (
	"reflect"
)

// maxWalkDepth bounds the payload walk. Real payloads are shallow; the
// limit only guards against pathological self-referential shapes the
// pointer set does not cover.
const maxWalkDepth = 1000

// findSyncPrimitive walks the payload and returns the type name of the
// first value declared in package sync it finds, or "" if the payload is
// clean. Gob skips unexported fields silently, so an embedded mutex would
// not fail the encode; it would just resurrect as a zombie lock. The walk
// turns that into an explicit pre-save failure.
func findSyncPrimitive(payload any) string {
	if payload == nil {
		return ""
	}
	seen := make(map[uintptr]bool)
	return walkForSync(reflect.ValueOf(payload), seen, 0)
}

func walkForSync(v reflect.Value, seen map[uintptr]bool, depth int) string {
	if !v.IsValid() || depth > maxWalkDepth {
		return ""
	}

	t := v.Type()
	if isSyncType(t) {
		return t.String()
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || seen[v.Pointer()] {
			return ""
		}
		seen[v.Pointer()] = true
		return walkForSync(v.Elem(), seen, depth+1)

	case reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return walkForSync(v.Elem(), seen, depth+1)

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if found := walkForSync(v.Field(i), seen, depth+1); found != "" {
				return found
			}
		}

	case reflect.Slice:
		if v.IsNil() || seen[v.Pointer()] {
			return ""
		}
		seen[v.Pointer()] = true
		for i := 0; i < v.Len(); i++ {
			if found := walkForSync(v.Index(i), seen, depth+1); found != "" {
				return found
			}
		}

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if found := walkForSync(v.Index(i), seen, depth+1); found != "" {
				return found
			}
		}

	case reflect.Map:
		if v.IsNil() || seen[v.Pointer()] {
			return ""
		}
		seen[v.Pointer()] = true
		iter := v.MapRange()
		for iter.Next() {
			if found := walkForSync(iter.Key(), seen, depth+1); found != "" {
				return found
			}
			if found := walkForSync(iter.Value(), seen, depth+1); found != "" {
				return found
			}
		}
	}

	return ""
}

func isSyncType(t reflect.Type) bool {
	return t.PkgPath() == "sync"
}
