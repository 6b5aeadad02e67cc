package headers

import (
	"net/url"
	"strings"

	"github.com/WhileEndless/go-requests/pkg/errors"
)

// URLDecode decodes a form-encoded value, turning '+' into a space. Invalid
// escapes are left as they are.
func URLDecode(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return strings.ReplaceAll(value, "+", " ")
	}
	return decoded
}

// ParseForm parses a body encoded like "key1=value1&key2=value2" into a
// Store, URL-decoding the values. Every pair must contain '='.
func ParseForm(data string) (*Store, error) {
	s := New()
	for data != "" {
		var pair string
		pair, data, _ = strings.Cut(data, "&")
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.NewValidationError("form pair without '=': " + pair)
		}
		s.AppendKey([]byte(URLDecode(key)))
		s.AppendValue([]byte(value))
		s.Push(URLDecode)
	}
	return s, nil
}
