package core

import "inventorycore/pkg/domain"

type (
	EntityType      = domain.EntityType
	Entity          = domain.Entity
	Meta            = domain.Meta
	Collection      = domain.Collection
	Item            = domain.Item
	ItemType        = domain.ItemType
	Config          = domain.Config
	DBSharing       = domain.DBSharing
	Issue           = domain.Issue
	DataStore       = domain.DataStore
	Conditions      = domain.Conditions
	Predicate       = domain.Predicate
	QueryOptions    = domain.QueryOptions
	SortField       = domain.SortField
	Relation        = domain.Relation
	ValidationError = domain.ValidationError
	StorageError    = domain.StorageError
	ConflictError   = domain.ConflictError
	NotFoundError   = domain.NotFoundError
)

const (
	EntityCollection = domain.EntityCollection
	EntityItem       = domain.EntityItem
	EntityConfig     = domain.EntityConfig
	EntityDBSharing  = domain.EntityDBSharing
)

const (
	RelationCollection = domain.RelationCollection
	RelationContainer  = domain.RelationContainer
	RelationContents   = domain.RelationContents
	RelationItems      = domain.RelationItems
)

type fields = map[string]domain.Predicate
