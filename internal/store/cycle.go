package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// refKey marks a placeholder object pointing at an earlier position in the
// stored value graph, e.g. {"$ref": "$[\"codes\"][0]"}.
const refKey = "$ref"

// decycle rewrites a value graph into a JSON-safe tree. The first visit of
// each container is emitted in place; every later visit becomes a $ref
// placeholder holding the path of the first occurrence.
func decycle(value any) any {
	return decycleValue(reflect.ValueOf(value), map[string]string{}, "$")
}

func decycleValue(v reflect.Value, seen map[string]string, path string) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return decycleValue(v.Elem(), seen, path)

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface()
		}
		id := containerID(v)
		if prior, ok := seen[id]; ok {
			return map[string]any{refKey: prior}
		}
		seen[id] = path
		out := make(map[string]any, v.Len())
		for _, key := range v.MapKeys() {
			k := key.String()
			out[k] = decycleValue(v.MapIndex(key), seen, path+"["+strconv.Quote(k)+"]")
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		id := containerID(v)
		if prior, ok := seen[id]; ok {
			return map[string]any{refKey: prior}
		}
		seen[id] = path
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = decycleValue(v.Index(i), seen, path+"["+strconv.Itoa(i)+"]")
		}
		return out

	case reflect.Array:
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = decycleValue(v.Index(i), seen, path+"["+strconv.Itoa(i)+"]")
		}
		return out

	default:
		return v.Interface()
	}
}

// containerID identifies a container for cycle detection. Slices include
// their length so a sub-slice sharing a backing array is not mistaken for
// the whole.
func containerID(v reflect.Value) string {
	if v.Kind() == reflect.Slice {
		return fmt.Sprintf("s%x:%d", v.Pointer(), v.Len())
	}
	return fmt.Sprintf("m%x", v.Pointer())
}

// retrocycle resolves $ref placeholders in a freshly decoded JSON tree back
// into shared references.
func retrocycle(root any) (any, error) {
	if ref, ok := refPath(root); ok {
		return nil, fmt.Errorf("store: root cannot be a reference to %q", ref)
	}
	if err := resolveRefs(root, root); err != nil {
		return nil, err
	}
	return root, nil
}

func resolveRefs(root, node any) error {
	switch n := node.(type) {
	case map[string]any:
		for k, child := range n {
			if ref, ok := refPath(child); ok {
				target, err := lookupPath(root, ref)
				if err != nil {
					return err
				}
				n[k] = target
				continue
			}
			if err := resolveRefs(root, child); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range n {
			if ref, ok := refPath(child); ok {
				target, err := lookupPath(root, ref)
				if err != nil {
					return err
				}
				n[i] = target
				continue
			}
			if err := resolveRefs(root, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func refPath(node any) (string, bool) {
	m, ok := node.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	ref, ok := m[refKey].(string)
	return ref, ok
}

// segmentEnd finds the index of the ']' closing the segment that starts at
// rest[0]. Quoted keys may contain ']' and escaped quotes.
func segmentEnd(rest string) int {
	i := 1
	if i < len(rest) && rest[i] == '"' {
		i++
		for i < len(rest) {
			switch rest[i] {
			case '\\':
				i += 2
				continue
			case '"':
				i++
			default:
				i++
				continue
			}
			break
		}
	}
	for i < len(rest) {
		if rest[i] == ']' {
			return i
		}
		i++
	}
	return -1
}

// lookupPath resolves a path of the form $["key"][0]["other"] against root.
func lookupPath(root any, path string) (any, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("store: malformed reference path %q", path)
	}
	rest := path[1:]
	node := root
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("store: malformed reference path %q", path)
		}
		end := segmentEnd(rest)
		if end < 0 {
			return nil, fmt.Errorf("store: malformed reference path %q", path)
		}
		token := rest[1:end]
		rest = rest[end+1:]

		if strings.HasPrefix(token, `"`) {
			key, err := strconv.Unquote(token)
			if err != nil {
				return nil, fmt.Errorf("store: malformed reference key %q: %w", token, err)
			}
			m, ok := node.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("store: reference path %q traverses a non-object", path)
			}
			node, ok = m[key]
			if !ok {
				return nil, fmt.Errorf("store: reference path %q not found", path)
			}
			continue
		}

		idx, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("store: malformed reference index %q: %w", token, err)
		}
		s, ok := node.([]any)
		if !ok || idx < 0 || idx >= len(s) {
			return nil, fmt.Errorf("store: reference path %q not found", path)
		}
		node = s[idx]
	}
	return node, nil
}
