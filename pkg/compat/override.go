package compat

import (
	"fmt"
	"strconv"
	"strings"
)

// Verdict is the outcome of one override entry. It is written as
// "undecided", "compatible" or "incompatible" in override files.
type Verdict int

const (
	Undecided Verdict = iota
	Compatible
	Incompatible
)

var verdictNames = [...]string{"undecided", "compatible", "incompatible"}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "verdict(" + strconv.Itoa(int(v)) + ")"
	}
	return verdictNames[v]
}

func (v Verdict) MarshalText() ([]byte, error) {
	if v < 0 || int(v) >= len(verdictNames) {
		return nil, fmt.Errorf("invalid verdict %d", int(v))
	}
	return []byte(verdictNames[v]), nil
}

// UnmarshalText accepts a verdict name in any case. The numeric forms 0-2
// are still read for older override files.
func (v *Verdict) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range verdictNames {
		if s == name || s == strconv.Itoa(i) {
			*v = Verdict(i)
			return nil
		}
	}
	return fmt.Errorf("invalid verdict %q (want undecided, compatible or incompatible)", string(text))
}

// Override is one entry of the component heuristic table, keyed by the
// canonical names of the owning components.
//
// An entry applies when the source component is listed in SourceComponents and
// the target either has a name containing one of TargetNameContains or declares
// one of TargetInputs. An applying entry rejects targets in Deny, accepts
// targets in Allow (or any target when Allow is empty) and otherwise returns
// Otherwise.
type Override struct {
	Rule               string   `json:"rule" yaml:"rule"`
	SourceComponents   []string `json:"source_components" yaml:"source_components"`
	TargetNameContains []string `json:"target_name_contains,omitempty" yaml:"target_name_contains,omitempty"`
	TargetInputs       []string `json:"target_inputs,omitempty" yaml:"target_inputs,omitempty"`
	Allow              []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny               []string `json:"deny,omitempty" yaml:"deny,omitempty"`
	Otherwise          Verdict  `json:"otherwise,omitempty" yaml:"otherwise,omitempty"`
}

// DefaultOverrides returns the built-in heuristic table.
func DefaultOverrides() []Override {
	return []Override{
		{
			Rule:               "slider_to_circle",
			SourceComponents:   []string{"Number Slider"},
			TargetNameContains: []string{"circle"},
			Allow:              []string{"Circle"},
			Deny:               []string{"CircleParam"},
			Otherwise:          Undecided,
		},
		{
			Rule:               "plane_producer",
			SourceComponents:   []string{"XY Plane", "XZ Plane", "YZ Plane", "Construct Plane"},
			TargetInputs:       []string{"Plane", "Base"},
			TargetNameContains: []string{"box", "rectangle", "circle", "cylinder", "cone"},
		},
	}
}

func (o Override) evaluate(owners Owners) Verdict {
	if !containsFold(o.SourceComponents, owners.Source) {
		return Undecided
	}

	target := strings.ToLower(owners.Target)
	matched := false
	for _, frag := range o.TargetNameContains {
		if strings.Contains(target, strings.ToLower(frag)) {
			matched = true
			break
		}
	}
	if !matched {
		for _, in := range owners.TargetInputs {
			if containsFold(o.TargetInputs, in) {
				matched = true
				break
			}
		}
	}
	if !matched {
		return Undecided
	}

	if containsFold(o.Deny, owners.Target) {
		return Incompatible
	}
	if len(o.Allow) == 0 || containsFold(o.Allow, owners.Target) {
		return Compatible
	}
	return o.Otherwise
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
