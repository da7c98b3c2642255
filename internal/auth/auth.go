// Package auth checks the single account/password pair configured for the
// gateway. MK-AUTH can send credentials as Basic auth, headers, form fields
// or query parameters, so every transport is accepted.
package auth

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
)

// Credentials is the configured account/password pair.
type Credentials struct {
	Account  string
	Password string
}

// Empty reports whether no credentials are configured, which disables
// authorization.
func (c Credentials) Empty() bool {
	return c.Account == "" && c.Password == ""
}

// Candidate is the pair extracted from a request.
type Candidate struct {
	Account  string
	Password string
}

// Authenticator validates requests against Credentials.
type Authenticator struct {
	creds Credentials
}

// New creates an Authenticator for the given credentials.
func New(creds Credentials) *Authenticator {
	return &Authenticator{creds: creds}
}

// Enabled reports whether requests are checked at all.
func (a *Authenticator) Enabled() bool {
	return !a.creds.Empty()
}

// Authorize reports whether c matches the configured pair exactly.
func (a *Authenticator) Authorize(c Candidate) bool {
	if a.creds.Empty() {
		return true
	}
	return c.Account == a.creds.Account && c.Password == a.creds.Password
}

// Extract collects a candidate from r. Account and password are resolved
// independently; for each, the first non-empty value wins in the order
// Basic auth, headers, body, query.
func Extract(r *http.Request, body fields.Payload) Candidate {
	basicAccount, basicPassword := readBasic(r.Header.Get("Authorization"))
	header := fields.FromHeader(r.Header)
	query := fields.FromValues(r.URL.Query())

	return Candidate{
		Account: firstNonEmpty(
			basicAccount,
			fields.String(header, fields.AccountHeader, ""),
			fields.String(body, fields.AccountField, ""),
			fields.String(query, fields.AccountField, ""),
		),
		Password: firstNonEmpty(
			basicPassword,
			fields.String(header, fields.PasswordHeader, ""),
			fields.String(body, fields.PasswordField, ""),
			fields.String(query, fields.PasswordField, ""),
		),
	}
}

// Check extracts and authorizes in one step.
func (a *Authenticator) Check(r *http.Request, body fields.Payload) bool {
	if a.creds.Empty() {
		return true
	}
	return a.Authorize(Extract(r, body))
}

func readBasic(header string) (account, password string) {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return "", ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", ""
	}
	account, password, _ = strings.Cut(string(decoded), ":")
	return account, password
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
