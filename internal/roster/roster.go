// Package roster holds the read-only recipient population the coordinator targets.
package roster

import (
	"regexp"
	"strings"
)

// Recipient is one roster row. Recipients are immutable once loaded.
type Recipient struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Branch          string `json:"branch"`
	Section         string `json:"section"`
	GuardianContact string `json:"guardian_contact"`
}

// Store is an ordered, read-only collection of recipients.
// It is never mutated after construction, so it needs no locking.
type Store struct {
	recipients []Recipient
}

// NewStore builds a store from recipients, keeping their order.
// IDs are normalized with NormalizeID.
func NewStore(recipients []Recipient) *Store {
	rs := make([]Recipient, len(recipients))
	for i, r := range recipients {
		r.ID = NormalizeID(r.ID)
		rs[i] = r
	}
	return &Store{recipients: rs}
}

// Empty returns a store with no recipients.
func Empty() *Store {
	return &Store{}
}

// Len returns the number of recipients.
func (s *Store) Len() int {
	return len(s.recipients)
}

// All returns every recipient in roster order.
func (s *Store) All() []Recipient {
	out := make([]Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out
}

// RecipientsIn returns the recipients of a branch, in roster order.
// When section is non-empty the result is further restricted to that section.
// Matching is exact and case-sensitive.
func (s *Store) RecipientsIn(branch, section string) []Recipient {
	out := make([]Recipient, 0)
	for _, r := range s.recipients {
		if r.Branch != branch {
			continue
		}
		if section != "" && r.Section != section {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Branches returns the distinct branches in first-seen order.
func (s *Store) Branches() []string {
	return distinct(s.recipients, func(r Recipient) (string, bool) {
		return r.Branch, true
	})
}

// Sections returns the distinct sections in first-seen order.
// An empty branch means sections across every branch.
func (s *Store) Sections(branch string) []string {
	return distinct(s.recipients, func(r Recipient) (string, bool) {
		return r.Section, branch == "" || r.Branch == branch
	})
}

func distinct(rs []Recipient, pick func(Recipient) (string, bool)) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range rs {
		v, ok := pick(r)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// decimalID matches plain decimal integers, optionally written with a zero
// fraction. Exponents, hex and Inf/NaN are opaque tokens.
var decimalID = regexp.MustCompile(`^([+-]?)([0-9]+)(?:\.0+)?$`)

// NormalizeID canonicalizes a recipient identifier so that "42", " 42 ",
// "042" and "42.0" all compare equal. Anything else is only trimmed.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	m := decimalID.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	digits := strings.TrimLeft(m[2], "0")
	if digits == "" {
		return "0"
	}
	if m[1] == "-" {
		return "-" + digits
	}
	return digits
}
