package tts

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/tts-proxy/internal/core"
)

// Query parameter names.
const (
	ParamText         = "text"
	ParamLanguageCode = "languageCode"
	ParamVoiceName    = "name"
	ParamEncoding     = "encoding"
)

// Defaults applied when a parameter is absent.
const (
	DefaultText         = "provide text"
	DefaultLanguageCode = "en-US"
	DefaultVoiceName    = "en-US-Standard-A"
)

// ParseQuery splits a raw query string on '&' only. A malformed escape
// sequence is kept literally instead of dropping the pair, and ';' is part of
// the value. url.ParseQuery discards both cases.
func ParseQuery(rawQuery string) url.Values {
	values := url.Values{}

	for pair := range strings.SplitSeq(rawQuery, "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		name := unescapeLenient(key)
		values[name] = append(values[name], unescapeLenient(value))
	}

	return values
}

// unescapeLenient decodes '+' and every well-formed %XX escape, leaving any
// other '%' untouched. Invalid UTF-8 becomes U+FFFD.
func unescapeLenient(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}

	var decoded strings.Builder

	decoded.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '+':
			decoded.WriteByte(' ')
		case s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			decoded.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			decoded.WriteByte(s[i])
		}
	}

	result := decoded.String()
	if !utf8.ValidString(result) {
		result = strings.ToValidUTF8(result, "\uFFFD")
	}

	return result
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// ResolveRequest builds a SynthesisRequest from a query string. Absent
// parameters take their defaults; present but empty ones are kept as given.
// Only the literal encoding "ogg" selects OGG/Opus, everything else is MP3.
func ResolveRequest(query url.Values) core.SynthesisRequest {
	encoding := core.EncodingMP3
	if query.Get(ParamEncoding) == string(core.EncodingOGG) {
		encoding = core.EncodingOGG
	}

	return core.SynthesisRequest{
		Text:         valueOr(query, ParamText, DefaultText),
		LanguageCode: valueOr(query, ParamLanguageCode, DefaultLanguageCode),
		VoiceName:    valueOr(query, ParamVoiceName, DefaultVoiceName),
		Encoding:     encoding,
	}
}

// CanonicalQuery encodes a resolved request with sorted keys. Requests that
// resolve to the same synthesis share the same canonical query.
func CanonicalQuery(req core.SynthesisRequest) string {
	values := url.Values{}
	values.Set(ParamText, req.Text)
	values.Set(ParamLanguageCode, req.LanguageCode)
	values.Set(ParamVoiceName, req.VoiceName)
	values.Set(ParamEncoding, string(req.Encoding))

	return values.Encode()
}

func valueOr(query url.Values, key, fallback string) string {
	values, ok := query[key]
	if !ok || len(values) == 0 {
		return fallback
	}

	return values[0]
}
