package merge

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// SentinelDelivre is the placeholder a bulk source writes in the delivrance
// column when a card was handed out but the recipient was not recorded.
// Any actual recipient name outranks it.
const SentinelDelivre = "OUI"

// FieldKind selects the merge policy for a string column.
type FieldKind int

const (
	// KindText prefers the longer value.
	KindText FieldKind = iota
	// KindName prefers the value with more diacritics, then the longer one.
	KindName
	// KindPlace prefers the value with more tokens, then the longer one.
	KindPlace
	// KindContact prefers an international number, then a well-formed one.
	KindContact
)

// Decision is the outcome of a merge resolution. When Apply is false the
// existing value stays and Value is meaningless.
type Decision struct {
	Apply bool
	Value string
}

func keep() Decision             { return Decision{} }
func take(value string) Decision { return Decision{Apply: true, Value: value} }

// Resolve dispatches a string column to its kind-specific resolver.
// All resolvers are pure: no side effects, identical output for identical
// input, and resolve(X, X) never applies.
func Resolve(kind FieldKind, existing, candidate string) Decision {
	switch kind {
	case KindName:
		return ResolveName(existing, candidate)
	case KindPlace:
		return ResolvePlace(existing, candidate)
	case KindContact:
		return ResolveContact(existing, candidate)
	default:
		return ResolveText(existing, candidate)
	}
}

// ResolveText implements the default free-text rule: an empty candidate
// never applies, an empty existing always yields, otherwise the longer
// value wins and the existing one is kept on ties.
func ResolveText(existing, candidate string) Decision {
	existing, candidate = strings.TrimSpace(existing), strings.TrimSpace(candidate)
	if candidate == "" {
		return keep()
	}
	if existing == "" {
		return take(candidate)
	}
	if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(existing) {
		return take(candidate)
	}
	return keep()
}

// ResolveName merges name-like fields. A value carrying more diacritics is
// considered more complete than its ASCII-flattened sibling, regardless of
// length; equal diacritic counts fall back to the longer-wins rule.
func ResolveName(existing, candidate string) Decision {
	existing, candidate = strings.TrimSpace(existing), strings.TrimSpace(candidate)
	if candidate == "" {
		return keep()
	}
	if existing == "" {
		return take(candidate)
	}

	de, dc := countDiacritics(existing), countDiacritics(candidate)
	if dc > de {
		return take(candidate)
	}
	if dc < de {
		return keep()
	}
	if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(existing) {
		return take(candidate)
	}
	return keep()
}

// ResolvePlace merges place-like fields: more whitespace-separated tokens
// wins ("Abidjan Cocody Riviera" over "Abidjan"), ties broken by length.
func ResolvePlace(existing, candidate string) Decision {
	existing, candidate = strings.TrimSpace(existing), strings.TrimSpace(candidate)
	if candidate == "" {
		return keep()
	}
	if existing == "" {
		return take(candidate)
	}

	te, tc := len(strings.Fields(existing)), len(strings.Fields(candidate))
	if tc > te {
		return take(candidate)
	}
	if tc < te {
		return keep()
	}
	if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(existing) {
		return take(candidate)
	}
	return keep()
}

var phonePattern = regexp.MustCompile(`^[0-9][0-9 ()./-]*$`)

// ResolveContact merges contact fields. Preference order: a value with a
// recognized international prefix, then a value matching the phone pattern,
// then the longer value. The existing value is kept on every tie.
func ResolveContact(existing, candidate string) Decision {
	existing, candidate = strings.TrimSpace(existing), strings.TrimSpace(candidate)
	if candidate == "" {
		return keep()
	}
	if existing == "" {
		return take(candidate)
	}

	ei, ci := hasIntlPrefix(existing), hasIntlPrefix(candidate)
	if ci && !ei {
		return take(candidate)
	}
	if ei && !ci {
		return keep()
	}

	ep, cp := phonePattern.MatchString(existing), phonePattern.MatchString(candidate)
	if cp && !ep {
		return take(candidate)
	}
	if ep && !cp {
		return keep()
	}

	if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(existing) {
		return take(candidate)
	}
	return keep()
}

// ResolveDelivrance merges the delivery status flag. A recipient name
// always outranks the sentinel in either direction of transition; between
// two different names the later associated delivery date wins, and a
// missing date loses.
func ResolveDelivrance(existing, candidate string, existingDate, candidateDate *time.Time) Decision {
	existing, candidate = strings.TrimSpace(existing), strings.TrimSpace(candidate)
	if candidate == "" || candidate == existing {
		return keep()
	}
	if existing == "" {
		return take(candidate)
	}

	if existing == SentinelDelivre {
		// sentinel -> name applies
		return take(candidate)
	}
	if candidate == SentinelDelivre {
		// name -> sentinel never applies
		return keep()
	}

	// Two different names: later delivery date wins.
	if candidateDate == nil {
		return keep()
	}
	if existingDate == nil || candidateDate.After(*existingDate) {
		return take(candidate)
	}
	return keep()
}

// DateDecision is the outcome of a date-column resolution.
type DateDecision struct {
	Apply bool
	Value *time.Time
}

// ResolveDeliveryDate replaces the delivery date only with a strictly later
// one.
func ResolveDeliveryDate(existing, candidate *time.Time) DateDecision {
	if candidate == nil {
		return DateDecision{}
	}
	if existing == nil || candidate.After(*existing) {
		return DateDecision{Apply: true, Value: candidate}
	}
	return DateDecision{}
}

// ResolveBirthDate never replaces a birth date once set. This is a
// stability rule, not a recency rule: the first recorded value wins.
func ResolveBirthDate(existing, candidate *time.Time) DateDecision {
	if existing != nil || candidate == nil {
		return DateDecision{}
	}
	return DateDecision{Apply: true, Value: candidate}
}

// hasIntlPrefix reports whether the contact carries a recognized
// international dialing prefix ("+" or "00" followed by digits).
func hasIntlPrefix(s string) bool {
	rest := ""
	switch {
	case strings.HasPrefix(s, "+"):
		rest = s[1:]
	case strings.HasPrefix(s, "00"):
		rest = s[2:]
	default:
		return false
	}
	return len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9'
}

// countDiacritics counts non-ASCII letters, a cheap proxy for accented
// characters in the French-language source data.
func countDiacritics(s string) int {
	n := 0
	for _, r := range s {
		if r > 127 {
			n++
		}
	}
	return n
}
