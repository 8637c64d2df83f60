// Package entity defines the core data model shared by every subsystem:
// typed node/edge identifiers, the closed entity and edge kind enums, and
// the immutable document record that flows through ingest and storage.
package entity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NodeID identifies a graph node. Random 128-bit.
type NodeID = uuid.UUID

// EdgeID identifies a graph edge. Random 128-bit.
type EdgeID = uuid.UUID

// SegmentID is a human-readable segment identifier keyed by calendar day
// (e.g. "2025-06-14").
type SegmentID = string

// ErrUnknownType is returned when parsing an entity or edge type string
// that is not part of the closed enum.
var ErrUnknownType = errors.New("entity: unknown type")

// EntityType is the closed set of node kinds the graph can hold.
type EntityType int

const (
	Member EntityType = iota
	Device
	Game
	Affiliate
	Currency
	VipGroup
	ErrorEntity
	Platform
	Popup
	Provider
)

var entityTypeNames = [...]string{
	Member:      "Member",
	Device:      "Device",
	Game:        "Game",
	Affiliate:   "Affiliate",
	Currency:    "Currency",
	VipGroup:    "VipGroup",
	ErrorEntity: "Error",
	Platform:    "Platform",
	Popup:       "Popup",
	Provider:    "Provider",
}

// EntityTypes returns all entity types in declaration order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypeNames))
	for i := range entityTypeNames {
		out[i] = EntityType(i)
	}
	return out
}

func (t EntityType) String() string {
	if int(t) < len(entityTypeNames) {
		return entityTypeNames[t]
	}
	return fmt.Sprintf("EntityType(%d)", int(t))
}

// ParseEntityType parses the canonical string form of an entity type.
func ParseEntityType(s string) (EntityType, error) {
	for i, name := range entityTypeNames {
		if name == s {
			return EntityType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: entity type %q", ErrUnknownType, s)
}

// EdgeType is the closed set of relation kinds between nodes.
type EdgeType int

const (
	LoggedInFrom EdgeType = iota
	OpenedGame
	SawPopup
	HitError
	BelongsToGroup
	ReferredBy
	UsesCurrency
	PlaysOnPlatform
	ProvidedBy
)

var edgeTypeNames = [...]string{
	LoggedInFrom:    "LoggedInFrom",
	OpenedGame:      "OpenedGame",
	SawPopup:        "SawPopup",
	HitError:        "HitError",
	BelongsToGroup:  "BelongsToGroup",
	ReferredBy:      "ReferredBy",
	UsesCurrency:    "UsesCurrency",
	PlaysOnPlatform: "PlaysOnPlatform",
	ProvidedBy:      "ProvidedBy",
}

// EdgeTypes returns all edge types in declaration order.
func EdgeTypes() []EdgeType {
	out := make([]EdgeType, len(edgeTypeNames))
	for i := range edgeTypeNames {
		out[i] = EdgeType(i)
	}
	return out
}

func (t EdgeType) String() string {
	if int(t) < len(edgeTypeNames) {
		return edgeTypeNames[t]
	}
	return fmt.Sprintf("EdgeType(%d)", int(t))
}

// ParseEdgeType parses the canonical string form of an edge type.
func ParseEdgeType(s string) (EdgeType, error) {
	for i, name := range edgeTypeNames {
		if name == s {
			return EdgeType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: edge type %q", ErrUnknownType, s)
}

// NewNodeID allocates a fresh random node identifier.
func NewNodeID() NodeID { return uuid.New() }

// NewEdgeID allocates a fresh random edge identifier.
func NewEdgeID() EdgeID { return uuid.New() }
