// Package sequence implements the controller that owns the current position in
// the attribute sequence.
//
// The index always lies in [0, N-1]. Stepping past either end wraps around;
// jumping (slider positioning) clamps. Every transition synchronously triggers
// exactly one symbol update for the newly selected attribute.
package sequence

import (
	"github.com/rewired-gh/symbolmap/internal/models"
	"github.com/rewired-gh/symbolmap/internal/symbols"
)

// Updater resizes the symbols for an attribute.
type Updater interface {
	Update(attribute string) symbols.UpdateReport
}

// Slider mirrors the bounded range input of the UI.
type Slider struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Step  int `json:"step"`
	Value int `json:"value"`
}

// Transition describes one completed state change.
type Transition struct {
	From      int                  `json:"from"`
	To        int                  `json:"to"`
	Attribute string               `json:"attribute"`
	Clamped   bool                 `json:"clamped"` // JumpTo target was outside [0, N-1]
	Report    symbols.UpdateReport `json:"report"`
}

// Controller is not safe for concurrent use; the owning view serializes input.
type Controller struct {
	attributes models.AttributeSequence
	updater    Updater
	index      int
}

// New creates a controller at index 0. The sequence must not be empty.
func New(attributes models.AttributeSequence, updater Updater) (*Controller, error) {
	if attributes.Len() == 0 {
		return nil, models.ErrEmptySequence
	}
	return &Controller{attributes: attributes, updater: updater}, nil
}

// Index returns the current position.
func (c *Controller) Index() int { return c.index }

// Attribute returns the attribute at the current position.
func (c *Controller) Attribute() string { return c.attributes.At(c.index) }

// Len returns N.
func (c *Controller) Len() int { return c.attributes.Len() }

// Attributes returns the sequence.
func (c *Controller) Attributes() models.AttributeSequence { return c.attributes }

// Slider returns the slider state for the current position.
func (c *Controller) Slider() Slider {
	return Slider{Min: 0, Max: c.attributes.Len() - 1, Step: 1, Value: c.index}
}

// StepForward moves to (index + 1) mod N.
func (c *Controller) StepForward() Transition {
	n := c.attributes.Len()
	return c.move((c.index+1)%n, false)
}

// StepBackward moves to (index - 1 + N) mod N.
func (c *Controller) StepBackward() Transition {
	n := c.attributes.Len()
	return c.move((c.index-1+n)%n, false)
}

// JumpTo moves to i clamped to [0, N-1].
func (c *Controller) JumpTo(i int) Transition {
	target := i
	clamped := false
	if target < 0 {
		target, clamped = 0, true
	}
	if last := c.attributes.Len() - 1; target > last {
		target, clamped = last, true
	}
	return c.move(target, clamped)
}

func (c *Controller) move(to int, clamped bool) Transition {
	from := c.index
	c.index = to
	attribute := c.attributes.At(to)
	return Transition{
		From:      from,
		To:        to,
		Attribute: attribute,
		Clamped:   clamped,
		Report:    c.updater.Update(attribute),
	}
}
