package core

import "patientcore/pkg/domain"

// Rule aliases the domain rule contract evaluated at transaction boundaries.
type Rule = domain.Rule

// RulesEngine aliases the domain rule orchestrator.
type RulesEngine = domain.RulesEngine

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in registry
// invariants: one role per identity key, and append-only ledger sequences.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewRoleExclusivityRule())
	engine.Register(NewAppendOnlyRule())
	return engine
}
