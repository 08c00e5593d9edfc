// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package index is the In-Memory Index (C2): a sorted, filterable snapshot of
// every entity in the Content Store, rebuilt after every batch of writes and
// evaluated as the source of truth for query fingerprints.
package index

import (
	"strings"

	"github.com/tomtom215/gallery/internal/models"
)

// Expr is a closed filter AST. Evaluators must be pure functions of the
// Entity only — no I/O, no hidden state — so Filter results stay
// deterministic for a fixed (entities, expr) pair.
type Expr interface {
	exprMarker()
}

type And struct{ Left, Right Expr }
type Or struct{ Left, Right Expr }
type Not struct{ Inner Expr }

type Tag struct{ Value string }
type ExtType struct{ Value string } // "image" or "video"
type Ext struct{ Value string }
type Model struct{ Value string }
type Make struct{ Value string }
type Path struct{ Value string }
type Album struct{ ID string }

// Any matches if Value appears as a substring of any name-like field (tag,
// alias path, album id, EXIF Make/Model).
type Any struct{ Value string }

type Favorite struct{ Value bool }
type Archived struct{ Value bool }
type Trashed struct{ Value bool }

func (And) exprMarker()      {}
func (Or) exprMarker()       {}
func (Not) exprMarker()      {}
func (Tag) exprMarker()      {}
func (ExtType) exprMarker()  {}
func (Ext) exprMarker()      {}
func (Model) exprMarker()    {}
func (Make) exprMarker()     {}
func (Path) exprMarker()     {}
func (Album) exprMarker()    {}
func (Any) exprMarker()      {}
func (Favorite) exprMarker() {}
func (Archived) exprMarker() {}
func (Trashed) exprMarker()  {}

// favoriteTag, archivedTag and trashedTag are the well-known tag values the
// boolean clauses compile down to, since the data model represents them as
// ordinary object_tag rows rather than dedicated columns.
const (
	favoriteTag = "favorite"
	archivedTag = "archived"
	trashedTag  = "trashed"
)

func hasTag(e *models.Entity, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func exifValue(e *models.Entity, tag string) (string, bool) {
	for _, ex := range e.Exif {
		if ex.Tag == tag {
			return ex.Value, true
		}
	}
	return "", false
}

// Eval evaluates expr over e using the unrestricted (non-share-scoped)
// semantics.
func Eval(expr Expr, e *models.Entity) bool {
	switch v := expr.(type) {
	case And:
		return Eval(v.Left, e) && Eval(v.Right, e)
	case Or:
		return Eval(v.Left, e) || Eval(v.Right, e)
	case Not:
		return !Eval(v.Inner, e)
	case Tag:
		return hasTag(e, v.Value)
	case ExtType:
		return string(e.Type) == v.Value
	case Ext:
		return e.Ext() == v.Value
	case Model:
		val, ok := exifValue(e, "Model")
		return ok && val == v.Value
	case Make:
		val, ok := exifValue(e, "Make")
		return ok && val == v.Value
	case Path:
		for _, a := range e.Aliases {
			if a.File == v.Value {
				return true
			}
		}
		return false
	case Album:
		for _, a := range e.Albums {
			if a == v.ID {
				return true
			}
		}
		return false
	case Any:
		return anyMatch(e, v.Value, true, true)
	case Favorite:
		return hasTag(e, favoriteTag) == v.Value
	case Archived:
		return hasTag(e, archivedTag) == v.Value
	case Trashed:
		return hasTag(e, trashedTag) == v.Value
	default:
		return false
	}
}

func anyMatch(e *models.Entity, needle string, includeTagPathAlbum, includeExif bool) bool {
	if includeTagPathAlbum {
		for _, t := range e.Tags {
			if contains(t, needle) {
				return true
			}
		}
		for _, a := range e.Aliases {
			if contains(a.File, needle) {
				return true
			}
		}
		for _, a := range e.Albums {
			if contains(a, needle) {
				return true
			}
		}
	}
	if includeExif {
		if m, ok := exifValue(e, "Make"); ok && contains(m, needle) {
			return true
		}
		if m, ok := exifValue(e, "Model"); ok && contains(m, needle) {
			return true
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return needle == "" || strings.Contains(haystack, needle)
}
