// Package compat pre-filters connections between ports. It only vetoes
// wiring that is known to be wrong; the host stays the authority.
package compat

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/host"
	"go.uber.org/zap"
)

// Rule names reported in decisions.
const (
	RuleSameType      = "same_type"
	RuleNumeric       = "numeric"
	RuleCurveGeometry = "curve_geometry"
	RulePointVector   = "point_vector"
	RuleDefault       = "default"
)

// Owners names the canonical components owning the two ports.
type Owners struct {
	Source string
	Target string
	// TargetInputs lists the declared input names of the target component.
	TargetInputs []string
}

// Decision is the outcome of a compatibility check. Trace lists every rule
// considered, in order, and never influences Compatible.
type Decision struct {
	Compatible bool     `json:"compatible"`
	Rule       string   `json:"rule"`
	Trace      []string `json:"trace"`
}

// Rejection is returned when a rule vetoes a connection.
type Rejection struct {
	Rule   string
	Source string
	Target string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("connection %s -> %s rejected by rule %s", e.Source, e.Target, e.Rule)
}

// Resolver evaluates the fixed rule order followed by the override table.
type Resolver struct {
	overrides []Override
	log       *zap.Logger
	observe   func(Decision)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverrides replaces the override table.
func WithOverrides(overrides []Override) Option {
	return func(r *Resolver) { r.overrides = overrides }
}

// WithLogger sets the logger receiving decision traces at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithObserver registers fn to be called with every decision.
func WithObserver(fn func(Decision)) Option {
	return func(r *Resolver) { r.observe = fn }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{overrides: DefaultOverrides(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// AreCompatible reports whether src may feed dst.
func (r *Resolver) AreCompatible(src, dst host.Port, owners Owners) bool {
	return r.Check(src, dst, owners).Compatible
}

// Verify runs Check and turns a veto into a *Rejection.
func (r *Resolver) Verify(src, dst host.Port, owners Owners) (Decision, error) {
	d := r.Check(src, dst, owners)
	if d.Compatible {
		return d, nil
	}
	return d, &Rejection{
		Rule:   d.Rule,
		Source: owners.Source + "." + src.Name,
		Target: owners.Target + "." + dst.Name,
	}
}

// Check evaluates the rules in order; the first that decides wins.
func (r *Resolver) Check(src, dst host.Port, owners Owners) Decision {
	d := r.check(src, dst, owners)
	r.log.Debug("compat_decision",
		zap.String("source", owners.Source+"."+src.Name),
		zap.String("target", owners.Target+"."+dst.Name),
		zap.Bool("compatible", d.Compatible),
		zap.String("rule", d.Rule),
		zap.Strings("trace", d.Trace))
	if r.observe != nil {
		r.observe(d)
	}
	return d
}

func (r *Resolver) check(src, dst host.Port, owners Owners) Decision {
	var trace []string
	decide := func(ok bool, rule string) Decision {
		trace = append(trace, rule+": decided")
		return Decision{Compatible: ok, Rule: rule, Trace: trace}
	}
	skip := func(rule string) {
		trace = append(trace, rule+": skipped")
	}

	if src.Type != "" && strings.EqualFold(src.Type, dst.Type) {
		return decide(true, RuleSameType)
	}
	skip(RuleSameType)

	sk, dk := KindOf(src.Type), KindOf(dst.Type)
	if sk == KindNumeric && dk == KindNumeric {
		return decide(true, RuleNumeric)
	}
	skip(RuleNumeric)

	if either(sk, dk, KindCurve, KindGeometry) {
		return decide(true, RuleCurveGeometry)
	}
	skip(RuleCurveGeometry)

	if either(sk, dk, KindPoint, KindVector) {
		return decide(true, RulePointVector)
	}
	skip(RulePointVector)

	for _, o := range r.overrides {
		switch o.evaluate(owners) {
		case Compatible:
			return decide(true, o.Rule)
		case Incompatible:
			return decide(false, o.Rule)
		default:
			skip(o.Rule)
		}
	}

	return decide(true, RuleDefault)
}

// either is true when {a, b} is {x, y} in any order.
func either(a, b, x, y Kind) bool {
	return (a == x && b == y) || (a == y && b == x)
}
