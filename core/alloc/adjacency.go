package alloc

import (
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
)

// composedRestriction is the strictest outcome of all adjacency rules active
// on one stand during one window.
type composedRestriction struct {
	noUse           bool
	maxSize         model.SizeCategory
	maxSizeSet      bool
	prohibitedTypes map[string]bool
}

func (c *composedRestriction) apply(rule model.AdjacencyRule) {
	switch rule.Restriction {
	case model.NoUseAffected:
		c.noUse = true
	case model.MaxSizeReduced:
		// Most restrictive wins: keep the smallest target size.
		if !c.maxSizeSet || rule.TargetSize < c.maxSize {
			c.maxSize = rule.TargetSize
			c.maxSizeSet = true
		}
	case model.TypeProhibited:
		if c.prohibitedTypes == nil {
			c.prohibitedTypes = make(map[string]bool)
		}
		c.prohibitedTypes[rule.ProhibitedTypeCode] = true
	}
}

// denies reports whether the composed restriction forbids the aircraft type.
func (c *composedRestriction) denies(t model.AircraftType) bool {
	if c.noUse {
		return true
	}
	if c.maxSizeSet && t.SizeCategory > c.maxSize {
		return true
	}
	return c.prohibitedTypes[t.TypeCode]
}

// composeRestrictions collects the rules affecting standID that are active
// during w, i.e. whose primary stand holds a placement of a trigger type
// overlapping w.
func composeRestrictions(reg *registry.Registry, board *placementBoard, standID string, w model.Window) *composedRestriction {
	composed := &composedRestriction{}
	for _, rule := range reg.AdjacencyRulesAffecting(standID) {
		for _, p := range board.on(rule.PrimaryStandID) {
			if rule.Triggers(p.typeCode) && p.window.Overlaps(w) {
				composed.apply(rule)
				break
			}
		}
	}
	return composed
}

// adjacencyDenied checks both directions for a candidate (typeCode, standID,
// w): restrictions triggered by existing placements against the candidate,
// and restrictions the candidate itself would trigger against existing
// placements on affected stands.
func adjacencyDenied(reg *registry.Registry, board *placementBoard, typeCode, standID string, w model.Window) bool {
	t, err := reg.AircraftType(typeCode)
	if err != nil {
		return true
	}
	if composeRestrictions(reg, board, standID, w).denies(t) {
		return true
	}
	// Reverse: the candidate as trigger must not invalidate placements that
	// already exist on affected stands.
	for _, rule := range reg.AdjacencyRulesFor(standID) {
		if !rule.Triggers(typeCode) {
			continue
		}
		for _, p := range board.on(rule.AffectedStandID) {
			if !p.window.Overlaps(w) {
				continue
			}
			pt, err := reg.AircraftType(p.typeCode)
			if err != nil {
				continue
			}
			single := &composedRestriction{}
			single.apply(rule)
			if single.denies(pt) {
				return true
			}
		}
	}
	return false
}
