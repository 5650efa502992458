package detector

import (
	"fmt"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// Policy controls how the two detector verdicts are combined.
type Policy string

const (
	// PolicyAny blocks when either detector blocks.
	PolicyAny Policy = "any"
	// PolicyAll blocks only when both detectors block.
	PolicyAll Policy = "all"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAny, "or":
		return PolicyAny, nil
	case PolicyAll, "and":
		return PolicyAll, nil
	}
	return "", fmt.Errorf("unknown decision policy %q", s)
}

// Combine is a pure function of its inputs.
func Combine(p Policy, waf, ml core.Verdict) core.Verdict {
	wafBlocks := waf == core.Blocked
	mlBlocks := ml == core.Blocked

	if p == PolicyAll {
		if wafBlocks && mlBlocks {
			return core.Blocked
		}
		return core.Allowed
	}
	if wafBlocks || mlBlocks {
		return core.Blocked
	}
	return core.Allowed
}
