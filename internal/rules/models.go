package rules

import (
	"regexp"
)

// Rule is one signature of the local rule engine. Rules above the engine's
// paranoia level are loaded but never evaluated.
type Rule struct {
	ID            string      `bson:"_id" yaml:"id" json:"id"`
	Name          string      `bson:"name" yaml:"name" json:"name"`
	Description   string      `bson:"description" yaml:"description,omitempty" json:"description,omitempty"`
	ParanoiaLevel int         `bson:"paranoia_level" yaml:"paranoia_level" json:"paranoia_level"`
	Conditions    []Condition `bson:"conditions" yaml:"conditions" json:"conditions"`
	OnMatch       MatchAction `bson:"on_match" yaml:"on_match" json:"on_match"`
	Enabled       bool        `bson:"enabled" yaml:"enabled" json:"enabled"`
}

type Condition struct {
	Field         string         `bson:"field" yaml:"field" json:"field"`
	Operator      string         `bson:"operator" yaml:"operator" json:"operator"`
	Value         interface{}    `bson:"value" yaml:"value" json:"value"`
	CompiledRegex *regexp.Regexp `bson:"-" yaml:"-" json:"-"`
}

type MatchAction struct {
	ScoreAdd  int      `bson:"score_add" yaml:"score_add" json:"score_add"`
	Tags      []string `bson:"tags" yaml:"tags,omitempty" json:"tags,omitempty"`
	HardBlock bool     `bson:"hard_block" yaml:"hard_block,omitempty" json:"hard_block,omitempty"`
}

// Match is the outcome of running the rule set over one payload.
type Match struct {
	Score     int
	RuleIDs   []string
	Tags      []string
	HardBlock bool
}

// Fired reports whether rule id matched.
func (m Match) Fired(id string) bool {
	for _, r := range m.RuleIDs {
		if r == id {
			return true
		}
	}
	return false
}
