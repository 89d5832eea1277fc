// Package targeting resolves which roster recipients an emergency must notify.
package targeting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidScope is returned when a scope rule is missing a required field
// or names an unknown scope type.
var ErrInvalidScope = errors.New("invalid scope")

// Kind identifies the scope variant.
type Kind string

const (
	KindAll     Kind = "all"
	KindBranch  Kind = "branch"
	KindSection Kind = "section"
)

// ScopeRule selects the base population of an emergency.
// Build it with All, Branch, Section or ParseScope; the zero value is invalid.
type ScopeRule struct {
	kind    Kind
	branch  string
	section string
}

// All targets the whole roster.
func All() ScopeRule {
	return ScopeRule{kind: KindAll}
}

// Branch targets every recipient of one branch.
func Branch(branch string) (ScopeRule, error) {
	r := ScopeRule{kind: KindBranch, branch: strings.TrimSpace(branch)}
	return r, r.Validate()
}

// Section targets one section of one branch.
func Section(branch, section string) (ScopeRule, error) {
	r := ScopeRule{kind: KindSection, branch: strings.TrimSpace(branch), section: strings.TrimSpace(section)}
	return r, r.Validate()
}

// ParseScope builds a rule from its wire form ("all", "branch", "section").
// Branch and section are ignored for kinds that do not use them.
func ParseScope(kind, branch, section string) (ScopeRule, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindAll:
		return All(), nil
	case KindBranch:
		return Branch(branch)
	case KindSection:
		return Section(branch, section)
	default:
		return ScopeRule{}, fmt.Errorf("%w: unknown emergency type %q", ErrInvalidScope, kind)
	}
}

// Validate reports whether the rule carries every field its kind requires.
func (r ScopeRule) Validate() error {
	switch r.kind {
	case KindAll:
		return nil
	case KindBranch:
		if r.branch == "" {
			return fmt.Errorf("%w: branch is required for branch emergencies", ErrInvalidScope)
		}
		return nil
	case KindSection:
		if r.branch == "" {
			return fmt.Errorf("%w: branch is required for section emergencies", ErrInvalidScope)
		}
		if r.section == "" {
			return fmt.Errorf("%w: section is required for section emergencies", ErrInvalidScope)
		}
		return nil
	default:
		return fmt.Errorf("%w: scope type not set", ErrInvalidScope)
	}
}

func (r ScopeRule) Kind() Kind      { return r.kind }
func (r ScopeRule) Branch() string  { return r.branch }
func (r ScopeRule) Section() string { return r.section }
func (r ScopeRule) IsZero() bool    { return r.kind == "" }

// Description is the human-readable audience, e.g. "Section CSE-A".
func (r ScopeRule) Description() string {
	switch r.kind {
	case KindAll:
		return "All Students"
	case KindBranch:
		return "Branch " + r.branch
	case KindSection:
		return "Section " + r.branch + "-" + r.section
	default:
		return ""
	}
}

func (r ScopeRule) String() string {
	switch r.kind {
	case KindBranch:
		return fmt.Sprintf("branch(%s)", r.branch)
	case KindSection:
		return fmt.Sprintf("section(%s,%s)", r.branch, r.section)
	default:
		return string(r.kind)
	}
}

type scopeJSON struct {
	Type    Kind   `json:"type"`
	Branch  string `json:"branch,omitempty"`
	Section string `json:"section,omitempty"`
}

// MarshalJSON encodes the rule as {"type":..,"branch":..,"section":..}.
func (r ScopeRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(scopeJSON{Type: r.kind, Branch: r.branch, Section: r.section})
}

// UnmarshalJSON decodes and validates the wire form.
func (r *ScopeRule) UnmarshalJSON(data []byte) error {
	var raw scopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseScope(string(raw.Type), raw.Branch, raw.Section)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
