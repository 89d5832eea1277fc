package targeting

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/afikmenashe/campus-alert/internal/roster"
)

// Source is the read-only roster view targeting needs.
type Source interface {
	All() []roster.Recipient
	RecipientsIn(branch, section string) []roster.Recipient
}

// SafeList is the set of recipient ids already accounted for.
// Keys are normalized with roster.NormalizeID.
type SafeList map[string]struct{}

// NewSafeList builds a safe-list from ids given as strings or numbers
// (int, int64, float64, json.Number). Empty ids are dropped.
func NewSafeList(ids ...any) SafeList {
	s := make(SafeList, len(ids))
	for _, id := range ids {
		key := NormalizeID(id)
		if key == "" {
			continue
		}
		s[key] = struct{}{}
	}
	return s
}

// Contains reports whether id is on the safe-list.
func (s SafeList) Contains(id string) bool {
	_, ok := s[roster.NormalizeID(id)]
	return ok
}

// NormalizeID turns a loosely typed id into the roster's comparable form.
func NormalizeID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return roster.NormalizeID(v)
	case json.Number:
		return roster.NormalizeID(v.String())
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10)
		}
		return roster.NormalizeID(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return roster.NormalizeID(fmt.Sprint(v))
	}
}

// Resolve computes the targeted population: the rule's base population minus
// every safe-listed recipient, in roster order. An empty result is valid; an
// invalid rule returns ErrInvalidScope.
func Resolve(src Source, rule ScopeRule, safe SafeList) ([]roster.Recipient, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	var base []roster.Recipient
	switch rule.Kind() {
	case KindAll:
		base = src.All()
	case KindBranch:
		base = src.RecipientsIn(rule.Branch(), "")
	case KindSection:
		base = src.RecipientsIn(rule.Branch(), rule.Section())
	}

	targeted := make([]roster.Recipient, 0, len(base))
	for _, r := range base {
		if safe.Contains(r.ID) {
			continue
		}
		targeted = append(targeted, r)
	}
	return targeted, nil
}
