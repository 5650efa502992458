package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const (
	MinParanoiaLevel = 1
	MaxParanoiaLevel = 4
)

// Engine evaluates a compiled rule set at a fixed paranoia level.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	rules []Rule
	pl    int
}

// NewEngine compiles regex conditions and keeps the enabled rules whose
// paranoia level does not exceed pl.
func NewEngine(all []Rule, pl int) (*Engine, error) {
	if pl < MinParanoiaLevel || pl > MaxParanoiaLevel {
		return nil, fmt.Errorf("paranoia level %d out of range [%d,%d]", pl, MinParanoiaLevel, MaxParanoiaLevel)
	}
	if err := Compile(all); err != nil {
		return nil, err
	}

	active := make([]Rule, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, r := range all {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		if !r.Enabled || r.ParanoiaLevel > pl {
			continue
		}
		active = append(active, r)
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	return &Engine{rules: active, pl: pl}, nil
}

// Compile fills CompiledRegex for every regex condition.
func Compile(all []Rule) error {
	for i := range all {
		for j := range all[i].Conditions {
			cond := &all[i].Conditions[j]
			if cond.Operator != "regex" || cond.CompiledRegex != nil {
				continue
			}
			strVal, ok := cond.Value.(string)
			if !ok {
				return fmt.Errorf("rule %s: regex condition needs a string value", all[i].ID)
			}
			re, err := regexp.Compile(strVal)
			if err != nil {
				return fmt.Errorf("rule %s: %w", all[i].ID, err)
			}
			cond.CompiledRegex = re
		}
	}
	return nil
}

// ParanoiaLevel returns the level the engine was built with.
func (e *Engine) ParanoiaLevel() int { return e.pl }

// RuleIDs lists the active rules in evaluation order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID
	}
	return ids
}

// Match runs every active rule over the payload.
func (e *Engine) Match(payload string) Match {
	inspected := Normalize(payload)

	var m Match
	for _, rule := range e.rules {
		matched := true
		for _, cond := range rule.Conditions {
			if !evaluate(cond, payload, inspected) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		m.Score += rule.OnMatch.ScoreAdd
		m.RuleIDs = append(m.RuleIDs, rule.ID)
		m.Tags = append(m.Tags, rule.OnMatch.Tags...)
		if rule.OnMatch.HardBlock {
			m.HardBlock = true
		}
	}
	return m
}

// Normalize joins the raw payload with up to two URL-decoding passes so
// encoded variants are inspected alongside the original.
func Normalize(payload string) string {
	parts := []string{payload}
	cur := payload
	for i := 0; i < 2; i++ {
		dec, err := url.QueryUnescape(cur)
		if err != nil || dec == cur {
			break
		}
		parts = append(parts, dec)
		cur = dec
	}
	return strings.Join(parts, " ")
}

func evaluate(cond Condition, raw, inspected string) bool {
	switch cond.Field {
	case "payload":
		return matchString(cond, inspected)
	case "payload.raw":
		return matchString(cond, raw)
	case "meta.length":
		return compareInt(cond, len(raw))
	case "meta.special_chars":
		return compareInt(cond, countSpecial(raw))
	}
	return false
}

func matchString(cond Condition, s string) bool {
	switch cond.Operator {
	case "regex":
		return cond.CompiledRegex != nil && cond.CompiledRegex.MatchString(s)
	case "contains":
		valStr, ok := cond.Value.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(valStr))
	}
	return false
}

func compareInt(cond Condition, actual int) bool {
	var v int
	switch n := cond.Value.(type) {
	case int:
		v = n
	case int32:
		v = int(n)
	case int64:
		v = int(n)
	case float64:
		v = int(n)
	default:
		return false
	}
	switch cond.Operator {
	case "gt":
		return actual > v
	case "lt":
		return actual < v
	case "equals":
		return actual == v
	}
	return false
}

func countSpecial(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case '\'', '"', ';', '(', ')', '=', '-', '#', '*', '/', '\\', '|', '&', '`', '~', '<', '>':
			n++
		}
	}
	return n
}
