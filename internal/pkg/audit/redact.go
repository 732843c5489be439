package audit

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"unicode"
)

// RedactedValue replaces masked card-like digit runs inside string values.
const RedactedValue = "[redacted]"

// Field names (after tokenizing) that must never reach a sink.
var (
	deniedTokens = map[string]struct{}{
		"pan":        {},
		"cvv":        {},
		"cvc":        {},
		"cvv2":       {},
		"expiry":     {},
		"expiration": {},
	}
	deniedPairs = map[string]struct{}{
		"cardnumber":   {},
		"securitycode": {},
		"expmonth":     {},
		"expyear":      {},
	}
	deniedSubstrings = []string{"cardnumber", "securitycode", "cvv", "cvc", "expiry", "expiration"}

	panLike = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

// IsSensitiveField reports whether key names card data, regardless of
// snake_case, kebab-case, camelCase or upper-case spelling.
func IsSensitiveField(key string) bool {
	tokens := tokenize(key)
	if len(tokens) == 0 {
		return false
	}
	for i, tok := range tokens {
		if _, ok := deniedTokens[tok]; ok {
			return true
		}
		if i > 0 {
			if _, ok := deniedPairs[tokens[i-1]+tok]; ok {
				return true
			}
		}
	}
	joined := strings.Join(tokens, "")
	if _, ok := deniedPairs[joined]; ok {
		return true
	}
	for _, sub := range deniedSubstrings {
		if strings.Contains(joined, sub) {
			return true
		}
	}
	return false
}

// Redact returns a copy of fields with every denied key removed, nested maps
// and slices included, and PAN-like digit runs masked in string values.
func Redact(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if IsSensitiveField(k) {
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return Redact(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case string:
		return panLike.ReplaceAllString(val, RedactedValue)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v
	case reflect.String:
		return panLike.ReplaceAllString(rv.String(), RedactedValue)
	}
	return redactValue(normalize(v))
}

// normalize turns typed maps, slices and structs into their JSON shape so
// nested keys (including json tags) go through the denylist. Values that
// cannot be encoded are dropped.
func normalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return RedactedValue
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return RedactedValue
	}
	return out
}

// tokenize splits snake_case, kebab-case, dotted and camelCase keys into
// lower-case words.
func tokenize(key string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(strings.TrimSpace(key))
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			// Start a new word on lower->Upper, or on the last capital of an
			// acronym followed by a lower-case letter (PANNumber -> pan, number).
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}
