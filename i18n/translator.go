package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "max", "actual" or "path").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

// New returns the built-in Translator for lang ("en"/"ja"). Unknown
// languages fall back to English.
func New(lang string) Translator {
	if lang != "ja" {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

var dictionaries = map[string]map[string]string{
	"ja": {
		"malformed":                    "JSON の構文が不正です",
		"string_too_long":              "文字列が長すぎます (最大 {max} 文字)",
		"too_many_children":            "要素数が多すぎます (最大 {max})",
		"too_deep":                     "ネストが深すぎます (最大 {max})",
		"limit_exceeded":               "構造上の制限を超えました",
		"empty_or_non_object_document": "ドキュメントが空、またはオブジェクトではありません",
		"schema_violation":             "スキーマ検証に失敗しました",
		"read_failed":                  "リクエスト本文の読み取りに失敗しました",
		"validator_failed":             "検証処理でエラーが発生しました",
		"body_too_large":               "リクエスト本文が大きすぎます",
		"not_acceptable":               "要求されたメディアタイプは提供できません",
		"unsupported_encoding":         "未対応の Content-Encoding です",
		"not_implemented":              "未実装の操作です",
		"internal":                     "内部サーバーエラーです。時間をおいて再試行するか、管理者に連絡してください。",
	},
	"en": {
		"malformed":                    "malformed JSON",
		"string_too_long":              "string too long (max {max} characters)",
		"too_many_children":            "too many children (max {max})",
		"too_deep":                     "nesting too deep (max {max})",
		"limit_exceeded":               "structural limit exceeded",
		"empty_or_non_object_document": "document is empty or not an object",
		"schema_violation":             "schema validation failed",
		"read_failed":                  "failed to read request body",
		"validator_failed":             "validation could not be performed",
		"body_too_large":               "request body too large",
		"not_acceptable":               "requested media type not acceptable",
		"unsupported_encoding":         "unsupported content encoding",
		"not_implemented":              "operation not implemented",
		"internal":                     "Internal server error. Retry later or contact the administrator.",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := dictionaries[t.lang][code]
	if !ok {
		return code
	}
	if len(data) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

var currentTranslator atomic.Value

func init() { currentTranslator.Store(holder{dictTranslator{lang: "en"}}) }

// holder keeps the stored concrete type constant for atomic.Value.
type holder struct{ Translator }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	currentTranslator.Store(holder{New(lang)})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	currentTranslator.Store(holder{tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	return currentTranslator.Load().(holder).Message(code, data)
}
