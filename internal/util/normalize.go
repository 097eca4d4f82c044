package util

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
)

// ParseFrom splits a From header into display name and normalized address.
// - Parses RFC 5322 values like "Name <User@Example.COM>"
// - Falls back to the first parseable entry of a comma-separated list
// - Falls back again to a plain "Name <addr>" split for headers net/mail rejects
// The address is lowercased and trimmed. Returns empty strings when no
// address can be found.
func ParseFrom(fromHeader string) (name, email string) {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(fromHeader)
	if err != nil || addr == nil {
		addr = nil
		for _, p := range strings.Split(fromHeader, ",") {
			a, e := mail.ParseAddress(strings.TrimSpace(p))
			if e == nil && a != nil {
				addr = a
				break
			}
		}
	}
	if addr != nil {
		return strings.TrimSpace(addr.Name), NormalizeAddress(addr.Address)
	}

	// Crude split, e.g. `Shop Team <orders@shop>` without a TLD.
	if lt := strings.Index(fromHeader, "<"); lt > -1 {
		rest := fromHeader[lt+1:]
		if gt := strings.Index(rest, ">"); gt > -1 {
			rest = rest[:gt]
		}
		name = strings.Trim(strings.TrimSpace(fromHeader[:lt]), `"'`)
		email = NormalizeAddress(rest)
		if !ValidAddress(email) {
			return "", ""
		}
		return name, email
	}
	if email = NormalizeAddress(fromHeader); ValidAddress(email) {
		return "", email
	}
	return "", ""
}

// NormalizeAddress trims and lowercases an email address. Unlike grouping
// keys elsewhere, +alias suffixes and dots are kept: a rule for
// user+news@x.com must not capture user@x.com.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// AddressKey returns the comparison key for an address. Two addresses are
// the same sender iff their keys are equal.
func AddressKey(addr string) string {
	// cases.Caser is stateful; never share one.
	return cases.Fold().String(strings.TrimSpace(addr))
}

// SameAddress reports whether a and b name the same sender, ignoring case.
func SameAddress(a, b string) bool {
	return AddressKey(a) == AddressKey(b)
}

// ValidAddress reports whether addr has a non-empty local part and domain.
func ValidAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	return !strings.ContainsAny(addr, " <>,")
}

// DisplayName returns a readable sender name. It prefers the header's
// display name and falls back to the capitalized local part.
func DisplayName(name, email string) string {
	if name = strings.Trim(strings.TrimSpace(name), `"'`); name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		parts := strings.Split(email[:at], ".")
		for i := range parts {
			if parts[i] == "" {
				continue
			}
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
		return strings.Join(parts, " ")
	}
	return email
}
