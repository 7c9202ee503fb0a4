package core

import (
	"context"
	"fmt"
	"strings"

	"inventorycore/pkg/domain"
)

// Validator checks entities against the business rules before they are
// saved or deleted. Rule violations are returned as issues; errors are
// reserved for adapter failures and a missing saved configuration.
type Validator struct {
	config   *ConfigProvider
	store    DataStore
	resolver *Resolver
	engine   *RulesEngine
}

// NewValidator constructs a validator. A nil engine uses NewDefaultRulesEngine.
func NewValidator(config *ConfigProvider, store DataStore, resolver *Resolver, engine *RulesEngine) *Validator {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return &Validator{config: config, store: store, resolver: resolver, engine: engine}
}

// Engine returns the rules engine used for Validate.
func (v *Validator) Engine() *RulesEngine { return v.engine }

// Validate runs the rules against e and returns every issue found.
func (v *Validator) Validate(ctx context.Context, e Entity) ([]Issue, error) {
	if cfg, ok := e.(Config); ok {
		return ValidateConfig(cfg), nil
	}
	local, err := v.config.GetConfig(ctx, ConfigOptions{EnsureSaved: true})
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{
		Entity:   e,
		Config:   local,
		Shared:   isFromSharedDB(e.Owner(), local),
		Store:    v.store,
		Resolver: v.resolver,
	}
	return v.engine.Evaluate(ctx, ev)
}

// ValidateDelete checks that the record of type t with the given id may be
// deleted: shared records need write permission, and collections or items
// that still hold items cannot be removed.
func (v *Validator) ValidateDelete(ctx context.Context, t EntityType, id string) ([]Issue, error) {
	local, err := v.config.GetConfig(ctx, ConfigOptions{EnsureSaved: true})
	if err != nil {
		return nil, err
	}
	original, err := v.store.GetDatum(ctx, t, id)
	if err != nil {
		return nil, asStorageError("get "+string(t), err)
	}
	if original == nil {
		return []Issue{domain.NewIssue("", fmt.Sprintf("Can't find %s with ID %q", t, id))}, nil
	}

	ev := &Evaluation{
		Entity:   original,
		Config:   local,
		Shared:   isFromSharedDB(original.Owner(), local),
		Store:    v.store,
		Resolver: v.resolver,
	}
	if err := (sharedWriteRule{verb: "delete"}).Evaluate(ctx, ev); err != nil {
		return nil, err
	}
	if ev.halted {
		return ev.Issues(), nil
	}

	switch rec := original.(type) {
	case Collection:
		items, ok, err := v.resolver.CollectionItems(ctx, rec, QueryOptions{Limit: 1})
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			ev.Report("", "Cannot check if this collection has no items.")
		case len(items) > 0:
			ev.Report("", "Cannot delete a collection that contain items.")
		}
	case Item:
		contents, ok, err := v.resolver.ItemContents(ctx, rec, QueryOptions{Limit: 1})
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			ev.Report("", "Cannot check if this item has no contents.")
		case len(contents) > 0:
			ev.Report("", "Cannot delete a item that contain items.")
		}
	case Config:
		ev.Report("", "The configuration cannot be deleted.")
	}
	return ev.Issues(), nil
}

// MessageOptions format GetValidationResultMessage output.
type MessageOptions struct {
	// Bullet is prepended to every issue, followed by a space.
	Bullet string
	// JoinWith separates issues. It defaults to ", ".
	JoinWith string
}

// GetValidationResultMessage renders issues as
// "<Title Cased Field Path>: <lowercased message>" joined together. Issues
// without a path render the message alone.
func GetValidationResultMessage(issues []Issue, opts MessageOptions) string {
	joinWith := opts.JoinWith
	if joinWith == "" {
		joinWith = ", "
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		var b strings.Builder
		if opts.Bullet != "" {
			b.WriteString(opts.Bullet)
			b.WriteString(" ")
		}
		if field := issue.Field(); field != "" {
			b.WriteString(toTitleCase(strings.ReplaceAll(field, "_", " ")))
			b.WriteString(": ")
		}
		b.WriteString(strings.ToLower(issue.Message))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, joinWith)
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
