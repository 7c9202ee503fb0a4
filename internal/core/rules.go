package core

import (
	"context"

	"inventorycore/pkg/domain"
)

// Rule defines one business check run during validation.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, ev *Evaluation) error
}

// Evaluation is the state shared by the rules validating one entity.
type Evaluation struct {
	Entity   Entity
	Config   Config
	Shared   bool
	Store    DataStore
	Resolver *Resolver

	issues []Issue
	halted bool

	collection       *Collection
	collectionLoaded bool
	iarConflict      bool
}

// Report records an issue against field.
func (ev *Evaluation) Report(field, message string) {
	ev.issues = append(ev.issues, domain.NewIssue(field, message))
}

// Halt stops the remaining rules from running.
func (ev *Evaluation) Halt() { ev.halted = true }

// Issues returns the issues reported so far.
func (ev *Evaluation) Issues() []Issue { return ev.issues }

// Collection returns the collection referenced by the item under validation,
// loading it once. It returns nil when there is no such collection.
func (ev *Evaluation) Collection(ctx context.Context) (*Collection, error) {
	if ev.collectionLoaded {
		return ev.collection, nil
	}
	item, ok := ev.Entity.(Item)
	if !ok {
		ev.collectionLoaded = true
		return nil, nil
	}
	coll, found, err := ev.Resolver.ItemCollection(ctx, item)
	if err != nil {
		return nil, err
	}
	ev.collectionLoaded = true
	if found {
		ev.collection = &coll
	}
	return ev.collection, nil
}

// RulesEngine runs rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine builds a rules engine with the built-in rule set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewSharedWriteRule())
	engine.Register(NewRecordShapeRule())
	engine.Register(NewCollectionReferenceRule())
	engine.Register(NewItemCollectionRule())
	engine.Register(NewItemContainerRule())
	engine.Register(NewItemTypeContentsRule())
	engine.Register(NewIARUniquenessRule())
	engine.Register(NewIAREncodingRule())
	engine.Register(NewEPCTagURIRule())
	engine.Register(NewEPCMemoryBankUniquenessRule())
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule until one halts and returns the accumulated issues.
// Rule errors are adapter failures and abort evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, ev *Evaluation) ([]Issue, error) {
	for _, rule := range e.rules {
		if err := rule.Evaluate(ctx, ev); err != nil {
			return nil, err
		}
		if ev.halted {
			break
		}
	}
	return ev.Issues(), nil
}
