// Package redact masks personal data in free text before it is persisted.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Kind names a category of personal data
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
)

// Match is one detected span. Start and End are byte offsets.
type Match struct {
	Kind  Kind
	Start int
	End   int
}

type rule struct {
	kind   Kind
	re     *regexp.Regexp
	accept func(string) bool
}

// Rules run in order. On overlap the earlier, then longer, span wins.
var rules = []rule{
	{kind: KindEmail, re: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kind: KindSSN, re: regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`), accept: validSSN},
	{kind: KindCreditCard, re: regexp.MustCompile(`\b[0-9](?:[ -]?[0-9]){12,18}\b`), accept: luhn},
	{kind: KindIPAddress, re: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
	{kind: KindPhone, re: regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\b[0-9]{3}\)?[-. ][0-9]{3}[-. ][0-9]{4}\b`)},
}

// Find returns the non-overlapping matches in text ordered by position.
func Find(text string) []Match {
	var found []Match
	for _, r := range rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if r.accept != nil && !r.accept(text[loc[0]:loc[1]]) {
				continue
			}
			found = append(found, Match{Kind: r.kind, Start: loc[0], End: loc[1]})
		}
	}
	if len(found) == 0 {
		return nil
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End > found[j].End
	})

	out := found[:1]
	for _, m := range found[1:] {
		if m.Start < out[len(out)-1].End {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Contains reports whether text holds any detectable personal data.
func Contains(text string) bool {
	return len(Find(text)) > 0
}

// String replaces every match in text with a placeholder such as
// "[EMAIL_REDACTED]".
func String(text string) string {
	matches := Find(text)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m.Start])
		b.WriteString(Placeholder(m.Kind))
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Placeholder is the text substituted for a match of kind k.
func Placeholder(k Kind) string {
	return "[" + strings.ToUpper(string(k)) + "_REDACTED]"
}

func validSSN(s string) bool {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[:3], digits[3:5], digits[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

// luhn validates a card number, ignoring spaces and dashes.
func luhn(s string) bool {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
