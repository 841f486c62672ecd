package fence

import (
	"iter"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// Trigger is one (fence, rule) pair that fired during an evaluation pass.
type Trigger struct {
	Fence *model.Fence
	Rule  model.Rule
}

// Contains reports whether p lies inside f, boundary inclusive.
//
// The test is planar: squared differences of lng and lat are compared with
// radius squared, with the radius taken in coordinate units. Geographic
// degrees paired with a meter radius are therefore only approximate, and
// only for small radii. Changing this to geodesic math would move alert
// boundaries.
func Contains(p model.Location, f *model.Fence) bool {
	dx := p.Lng - f.Lng
	dy := p.Lat - f.Lat
	return dx*dx+dy*dy <= f.Radius*f.Radius
}

// Fires reports whether a rule with the given condition triggers for the
// current containment state. ENTER and INSIDE both fire while inside; EXIT
// and OUTSIDE both fire while outside. There is no memory of the previous
// state, so a rule fires again on every update. Unknown conditions never fire.
func Fires(cond model.Condition, inside bool) bool {
	switch cond {
	case model.ConditionEnter, model.ConditionInside:
		return inside
	case model.ConditionExit, model.ConditionOutside:
		return !inside
	}
	return false
}

// Evaluate tests loc against every fence and returns the triggered pairs in
// fence order, then rule order. Fences with a non-positive radius are
// skipped rather than failing the pass.
func Evaluate(loc model.Location, fences iter.Seq[*model.Fence]) []Trigger {
	var out []Trigger
	for f := range fences {
		if f == nil || !(f.Radius > 0) {
			continue
		}
		inside := Contains(loc, f)
		for _, r := range f.Rules {
			if Fires(r.Condition, inside) {
				out = append(out, Trigger{Fence: f, Rule: r})
			}
		}
	}
	return out
}
