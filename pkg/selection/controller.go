// Package selection tracks the user's current text selection and the
// transient action affordance anchored to it.
package selection

import (
	"strings"

	"github.com/odvcencio/redline/pkg/textrange"
)

// State is the controller state
type State string

const (
	StateIdle   State = "idle"   // no selection, affordance hidden
	StateActive State = "active" // selection exists, affordance visible
)

// affordanceLift is how far above the selection top the affordance floats.
const affordanceLift = 8

// Rect is the pixel bounding box of the selection as reported by the view.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Anchor is the on-screen position for the transient affordance.
type Anchor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Controller owns the current selection and affordance state.
type Controller struct {
	state    State
	current  textrange.Range
	anchor   Anchor
	verbatim []textrange.Range
}

// NewController returns an idle controller.
func NewController() *Controller {
	return &Controller{state: StateIdle}
}

// OnSelect handles a raw selection event. A collapsed or out-of-bounds
// selection clears state. selectedText is the text the view reported for
// the selection; it may differ from the document substring when the view
// renders markdown. The verbatim tag is a containment check of that
// reported text against the whole document, not anchored to the offsets,
// so a phrase duplicated elsewhere can still earn the tag.
func (c *Controller) OnSelect(doc string, start, end int, selectedText string, geom Rect) {
	if start == end || start < 0 || end > len(doc) || start > end {
		c.reset()
		return
	}

	r := textrange.New(doc, start, end)

	probe := selectedText
	if probe == "" {
		probe = r.Text
	}
	if strings.Contains(doc, probe) {
		r.Provenance = textrange.ProvenanceVerbatim
	}

	c.current = r
	c.anchor = Anchor{
		X: (geom.Left + geom.Right) / 2,
		Y: geom.Top - affordanceLift,
	}
	c.state = StateActive
}

// Confirm moves the current selection into the highlight set via the
// merger and returns the merged set. Reports false when there is no active
// selection, leaving existing untouched. A verbatim-tagged range is also
// recorded in the verbatim-matches set.
func (c *Controller) Confirm(doc string, existing []textrange.Range) ([]textrange.Range, bool) {
	if c.state != StateActive {
		return existing, false
	}

	if c.current.Provenance == textrange.ProvenanceVerbatim {
		c.verbatim = append(c.verbatim, c.current)
	}

	merged := textrange.Merge(doc, existing, c.current)
	c.reset()
	return merged, true
}

// Dismiss handles a click outside the editable surface: back to idle
// without confirming.
func (c *Controller) Dismiss() {
	c.reset()
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.state
}

// Current returns the pending selection, if any.
func (c *Controller) Current() (textrange.Range, bool) {
	if c.state != StateActive {
		return textrange.Range{}, false
	}
	return c.current, true
}

// AffordanceAnchor returns the affordance position; only meaningful while
// active.
func (c *Controller) AffordanceAnchor() Anchor {
	return c.anchor
}

// VerbatimMatches returns ranges confirmed with verbatim provenance.
func (c *Controller) VerbatimMatches() []textrange.Range {
	return c.verbatim
}

// ClearVerbatim empties the verbatim-matches set.
func (c *Controller) ClearVerbatim() {
	c.verbatim = nil
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.current = textrange.Range{}
	c.anchor = Anchor{}
}
