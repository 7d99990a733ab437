package i18n

import (
	"sort"
	"strings"
	"sync"
)

// Translator retrieves localized messages for error codes.
// data provides optional location details ("op", "tag", "offset") that are
// appended to the message.
type Translator interface {
	Message(code string, data map[string]string) string
}

var dictionaries = map[string]map[string]string{
	"en": {
		"none":       "ok",
		"invalid":    "handle is no longer usable",
		"alloc":      "buffer allocation failed",
		"offset":     "offset outside the message",
		"underrun":   "read past the end of the buffer",
		"overflow":   "declared length exceeds the buffer",
		"varint":     "malformed varint",
		"descriptor": "field not declared in the schema",
		"absent":     "value not present",
		"eom":        "end of message",
	},
	"ja": {
		"none":       "正常",
		"invalid":    "ハンドルは使用できません",
		"alloc":      "バッファの確保に失敗しました",
		"offset":     "オフセットがメッセージの範囲外です",
		"underrun":   "バッファの終端を越えて読み込みました",
		"overflow":   "宣言された長さがバッファを超えています",
		"varint":     "不正な可変長整数です",
		"descriptor": "スキーマに存在しないフィールドです",
		"absent":     "値が存在しません",
		"eom":        "メッセージの終端です",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := dictionaries[t.lang][code]
	if !ok {
		msg = code
	}
	if len(data) == 0 {
		return msg
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := &strings.Builder{}
	b.WriteString(msg)
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(data[k])
	}
	b.WriteString(")")
	return b.String()
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// Dictionary returns the built-in Translator for lang; unknown languages
// fall back to English.
func Dictionary(lang string) Translator {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) { SetTranslator(Dictionary(lang)) }

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	mu.Lock()
	defer mu.Unlock()
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// Current returns the Translator installed by SetLanguage or SetTranslator.
func Current() Translator {
	mu.RLock()
	defer mu.RUnlock()
	return currentTranslator
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return Current().Message(code, data) }
