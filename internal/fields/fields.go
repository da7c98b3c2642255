// Package fields resolves request values that MK-AUTH and other callers send
// under inconsistent, often Portuguese, field names.
package fields

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Payload is a decoded request body, query string or header set.
type Payload map[string]any

// Aliases is an ordered list of candidate field names. Earlier names win.
type Aliases []string

// Alias tables, in priority order. MK-AUTH names come first.
var (
	Recipient = Aliases{"to", "number", "numero", "telefone", "phone", "destino"}
	Text      = Aliases{"msg", "message", "mensagem", "text", "body", "conteudo"}
	MimeType  = Aliases{"mimetype", "contentType", "tipo"}
	Filename  = Aliases{"filename", "nome", "nome_arquivo"}
	Caption   = Aliases{"caption", "legenda", "descricao"}

	ImageURL    = Aliases{"image", "url", "link"}
	DocumentURL = Aliases{"document", "url", "link"}

	ImageUpload    = Aliases{"image", "file"}
	DocumentUpload = Aliases{"document", "file"}

	AccountHeader  = Aliases{"conta", "account"}
	AccountField   = Aliases{"login", "conta", "account"}
	PasswordHeader = Aliases{"senha", "password"}
	PasswordField  = Aliases{"pass", "senha", "password"}

	MessageID   = Aliases{"id"}
	CheckNumber = Aliases{"to", "number"}
)

// Lookup returns the value of the first alias present in p with a non-nil
// value. ok is false when none matched.
func Lookup(p Payload, names Aliases) (value any, ok bool) {
	for _, name := range names {
		if v, found := p[name]; found && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String resolves names to text. Numbers and booleans are rendered the way
// they appeared in the request; objects and arrays count as absent.
func String(p Payload, names Aliases, fallback string) string {
	v, ok := Lookup(p, names)
	if !ok {
		return fallback
	}
	if s, ok := Scalar(v); ok {
		return s
	}
	return fallback
}

// Scalar converts a scalar payload value to a string.
func Scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case []string:
		if len(t) == 0 {
			return "", false
		}
		return t[0], true
	default:
		return "", false
	}
}

// FromValues builds a payload from form or query values, keeping the first
// value of each key.
func FromValues(values url.Values) Payload {
	p := make(Payload, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p
}

// FromHeader builds a payload from HTTP headers with lower-cased names.
func FromHeader(h http.Header) Payload {
	p := make(Payload, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			p[strings.ToLower(k)] = vs[0]
		}
	}
	return p
}
