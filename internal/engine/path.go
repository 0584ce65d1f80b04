package engine

import (
	"strconv"
	"strings"
)

// pointer renders the location of the child being parsed in the first
// frames stack frames as a JSON Pointer. The root is rendered as "/" so error
// paths are never empty.
func (p *parser) pointer(frames int) string {
	var path string
	for i := 0; i < frames; i++ {
		f := &p.stack[i]
		if f.ob == nil {
			path = joinJSONPointer(path, strconv.Itoa(f.arr.Len()))
			continue
		}
		path = joinJSONPointer(path, f.key)
	}
	return normalizeIssuePath(path)
}

func normalizeIssuePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapeJSONPointerToken(s string) string {
	return jsonPointerEscaper.Replace(s)
}

func joinJSONPointer(base, token string) string {
	if base == "" {
		return "/" + escapeJSONPointerToken(token)
	}
	return base + "/" + escapeJSONPointerToken(token)
}
