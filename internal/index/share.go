// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package index

import "github.com/tomtom215/gallery/internal/models"

// ShareFilter decorates Eval with the share-scoped evaluation rules: it never
// copies the base evaluator, it wraps it, so the two stay in sync as the AST
// grows.
//
//   - Album(id) passes only if id equals SharedID.
//   - Tag and Path clauses always reject.
//   - Any ignores the tag/alias/album/path branches.
type ShareFilter struct {
	SharedID string
}

// Eval evaluates expr over e under share-scoped restrictions.
func (s ShareFilter) Eval(expr Expr, e *models.Entity) bool {
	switch v := expr.(type) {
	case And:
		return s.Eval(v.Left, e) && s.Eval(v.Right, e)
	case Or:
		return s.Eval(v.Left, e) || s.Eval(v.Right, e)
	case Not:
		return !s.Eval(v.Inner, e)
	case Tag:
		return false
	case Path:
		return false
	case Album:
		return v.ID == s.SharedID
	case Any:
		return anyMatch(e, v.Value, false, true)
	default:
		return Eval(expr, e)
	}
}
