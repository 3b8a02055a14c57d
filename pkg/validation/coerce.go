package validation

import (
	"net/url"
	"slices"
	"strconv"
)

// coerceQuery はクエリパラメータをスキーマのproperties宣言に従って型変換する。
// 宣言の無いパラメータは文字列のまま（複数指定された場合は文字列の配列）扱う。
func coerceQuery(values url.Values, schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)

	out := make(map[string]any, len(values))
	for name, vs := range values {
		prop, _ := props[name].(map[string]any)
		types := schemaTypes(prop)

		if slices.Contains(types, "array") {
			itemTypes := schemaTypes(asMap(prop["items"]))
			items := make([]any, len(vs))
			for i, v := range vs {
				items[i] = coerceScalar(v, itemTypes)
			}
			out[name] = items
			continue
		}

		if len(vs) == 1 {
			out[name] = coerceScalar(vs[0], types)
			continue
		}
		items := make([]any, len(vs))
		for i, v := range vs {
			items[i] = coerceScalar(v, types)
		}
		out[name] = items
	}
	return out
}

// coerceScalar は宣言された型の順に変換を試み、最初に成功した値を返す。
func coerceScalar(v string, types []string) any {
	for _, t := range types {
		switch t {
		case "integer":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		case "number":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		case "boolean":
			switch v {
			case "true":
				return true
			case "false":
				return false
			}
		case "null":
			if v == "" {
				return nil
			}
		case "string":
			return v
		}
	}
	return v
}

// schemaTypes はスキーマのtypeキーワードを文字列の一覧として返す。
func schemaTypes(schema map[string]any) []string {
	switch t := schema["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
