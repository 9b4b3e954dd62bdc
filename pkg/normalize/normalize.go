// Package normalize coerces loosely typed upstream values (JSON fragments and
// scraped text) into the fields of a domain.Listing.
//
// Every function returns a usable default alongside an optional diagnostic.
// A nil error means the value parsed or was simply absent; a *ParseError
// means a value was present but unusable and the default was substituted.
// None of these functions panic.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Field names used in ParseError.
const (
	FieldTitle  = "title"
	FieldPrice  = "price"
	FieldRating = "rating"
	FieldLink   = "link"
)

// Bounds for the two rating scales.
const (
	MaxPercentage = 100.0
	MaxStars      = 5.0
)

var (
	errEmpty       = errors.New("empty value")
	errNotFinite   = errors.New("value is not finite")
	errNegative    = errors.New("value is negative")
	errUnsupported = errors.New("unsupported JSON type")
	errNoNumber    = errors.New("no leading number")
)

// ParseError describes a field that was present upstream but could not be
// coerced. The listing still gets the field's default.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s from %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(field, input string, err error) *ParseError {
	return &ParseError{Field: field, Input: input, Err: err}
}

// Title NFC-normalizes s, trims surrounding space, and truncates it to at most
// maxLen runes.
func Title(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// CollapseSpace replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Price coerces a JSON price fragment into a non-negative float.
//
// Accepted shapes: a number, a numeric string (currency symbols and
// thousands separators are stripped), or an object whose "value" or "price"
// member holds either of those. Absent or null yields 0 with no error.
func Price(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return 0, nil
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, parseErr(FieldPrice, string(raw), err)
		}
		for _, key := range []string{"value", "price"} {
			if v, ok := obj[key]; ok && !isAbsent(bytes.TrimSpace(v)) {
				return Price(v)
			}
		}
		return 0, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, parseErr(FieldPrice, string(raw), err)
		}
		return PriceText(s)
	default:
		if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
			v, err := strconv.ParseFloat(string(raw), 64)
			if err != nil {
				return 0, parseErr(FieldPrice, string(raw), err)
			}
			return checkPrice(v, string(raw))
		}
		return 0, parseErr(FieldPrice, string(raw), errUnsupported)
	}
}

// PriceEmpty reports whether raw carries no price at all: absent, null, a
// blank string, or an object without a non-empty "value" or "price" member.
// Fragments that hold something unparseable are not empty.
func PriceEmpty(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return true
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return false
		}
		for _, key := range []string{"value", "price"} {
			if v, ok := obj[key]; ok && !PriceEmpty(v) {
				return false
			}
		}
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

// PriceText parses display text such as "$1,299.99" or "12.50 USD".
// Leading and trailing non-numeric characters are dropped, as are commas.
func PriceText(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimLeftFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-'
	})
	trimmed = strings.TrimRightFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	trimmed = strings.ReplaceAll(trimmed, ",", "")
	if trimmed == "" {
		return 0, parseErr(FieldPrice, s, errEmpty)
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, parseErr(FieldPrice, s, err)
	}
	return checkPrice(v, s)
}

func checkPrice(v float64, input string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, parseErr(FieldPrice, input, errNotFinite)
	}
	if v < 0 {
		return 0, parseErr(FieldPrice, input, errNegative)
	}
	return v, nil
}

// FeedbackPercentage coerces a seller feedback percentage. The fragment may
// be a JSON number or a string with or without a trailing '%'. The result is
// clamped to [0, 100] and rounded to two decimals. Absent or null yields nil
// with no error; an unparseable value yields nil and a *ParseError.
func FeedbackPercentage(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}

	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, parseErr(FieldRating, string(raw), err)
		}
		return PercentText(s)
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return PercentText(string(raw))
	default:
		return nil, parseErr(FieldRating, string(raw), errUnsupported)
	}
}

// PercentText parses "99.5", "99.5%", or " 99.5 % ".
func PercentText(s string) (*float64, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	if trimmed == "" {
		return nil, parseErr(FieldRating, s, errEmpty)
	}

	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, parseErr(FieldRating, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, parseErr(FieldRating, s, errNotFinite)
	}

	v = round2(clamp(v, 0, MaxPercentage))
	return &v, nil
}

var leadingNumber = regexp.MustCompile(`^\d+(?:[.,]\d+)?`)

// StarRating parses the leading decimal of a label such as
// "4.5 out of 5 stars" and clamps it to [0, 5].
func StarRating(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, parseErr(FieldRating, text, errEmpty)
	}

	m := leadingNumber.FindString(trimmed)
	if m == "" {
		return 0, parseErr(FieldRating, text, errNoNumber)
	}

	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0, parseErr(FieldRating, text, err)
	}
	return clamp(v, 0, MaxStars), nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
