package labelformat

import (
	"errors"
	"fmt"
	"math"

	"github.com/thereceipt/label-engine/internal/units"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrCycle           = errors.New("group cannot contain itself")
)

// Handle names a corner resize handle.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

// location is where an element lives: the slice that owns it and its parent.
type location struct {
	siblings *[]Element
	index    int
	parent   *Element
}

func (t *Template) locate(id string) (location, bool) {
	return locateIn(&t.Elements, nil, id)
}

func locateIn(list *[]Element, parent *Element, id string) (location, bool) {
	for i := range *list {
		el := &(*list)[i]
		if el.ID == id {
			return location{siblings: list, index: i, parent: parent}, true
		}
		if el.Type == TypeGroup && el.Group != nil {
			if loc, ok := locateIn(&el.Group.Children, el, id); ok {
				return loc, true
			}
		}
	}
	return location{}, false
}

// Find returns the element with id, or nil.
func (t *Template) Find(id string) *Element {
	loc, ok := t.locate(id)
	if !ok {
		return nil
	}
	return &(*loc.siblings)[loc.index]
}

// containerSize is the area an element's absolute box is clamped to: the canvas
// for top-level elements, the group box for children.
func (t *Template) containerSize(loc location) units.Size {
	if loc.parent == nil {
		return units.Size{W: t.Width, H: t.Height}
	}
	return units.Size{W: loc.parent.Box.Width, H: loc.parent.Box.Height}
}

// AddElement appends el to the group parentID, or to the canvas when parentID
// is empty.
func (t *Template) AddElement(parentID string, el Element) error {
	if el.ID == "" {
		return fmt.Errorf("element id is required")
	}
	if t.Find(el.ID) != nil {
		return fmt.Errorf("duplicate id '%s'", el.ID)
	}
	var dupe string
	Walk(el.Children(), func(child *Element, _ *Element) bool {
		if t.Find(child.ID) != nil {
			dupe = child.ID
			return false
		}
		return true
	})
	if dupe != "" {
		return fmt.Errorf("duplicate id '%s'", dupe)
	}

	if parentID == "" {
		t.Elements = append(t.Elements, el)
		return nil
	}
	parent := t.Find(parentID)
	if parent == nil {
		return fmt.Errorf("parent '%s': %w", parentID, ErrElementNotFound)
	}
	if parent.Type != TypeGroup {
		return fmt.Errorf("parent '%s' is not a group", parentID)
	}
	if parent.Group == nil {
		parent.Group = &Group{}
	}
	parent.Group.Children = append(parent.Group.Children, el)
	return nil
}

// RemoveElement detaches the element and returns it with its children.
func (t *Template) RemoveElement(id string) (Element, error) {
	loc, ok := t.locate(id)
	if !ok {
		return Element{}, fmt.Errorf("'%s': %w", id, ErrElementNotFound)
	}
	list := *loc.siblings
	el := list[loc.index]
	*loc.siblings = append(list[:loc.index:loc.index], list[loc.index+1:]...)
	if t.Columns != nil {
		delete(t.Columns, id)
	}
	return el, nil
}

// MoveElement transfers ownership of id to the group parentID (canvas when
// empty), inserting at index. An index out of range appends.
func (t *Template) MoveElement(id, parentID string, index int) error {
	el := t.Find(id)
	if el == nil {
		return fmt.Errorf("'%s': %w", id, ErrElementNotFound)
	}
	if parentID != "" {
		if parentID == id {
			return ErrCycle
		}
		cyclic := false
		Walk(el.Children(), func(child *Element, _ *Element) bool {
			if child.ID == parentID {
				cyclic = true
				return false
			}
			return true
		})
		if cyclic {
			return ErrCycle
		}
		parent := t.Find(parentID)
		if parent == nil {
			return fmt.Errorf("parent '%s': %w", parentID, ErrElementNotFound)
		}
		if parent.Type != TypeGroup {
			return fmt.Errorf("parent '%s' is not a group", parentID)
		}
	}

	mapped, hadMapping := t.Columns[id]
	moved, err := t.RemoveElement(id)
	if err != nil {
		return err
	}
	if hadMapping {
		t.Columns[id] = mapped
	}

	var target *[]Element
	if parentID == "" {
		target = &t.Elements
	} else {
		parent := t.Find(parentID)
		if parent.Group == nil {
			parent.Group = &Group{}
		}
		target = &parent.Group.Children
	}

	if index < 0 || index >= len(*target) {
		*target = append(*target, moved)
		return nil
	}
	*target = append((*target)[:index], append([]Element{moved}, (*target)[index:]...)...)
	return nil
}

// UpdateElementBox replaces the absolute box of id, clamped so the element stays
// inside its container. It returns the box actually applied.
func (t *Template) UpdateElementBox(id string, box units.Rect) (units.Rect, error) {
	loc, ok := t.locate(id)
	if !ok {
		return units.Rect{}, fmt.Errorf("'%s': %w", id, ErrElementNotFound)
	}
	el := &(*loc.siblings)[loc.index]

	clamped := units.ClampBox(box, t.containerSize(loc))
	el.Box.X, el.Box.Y = clamped.X, clamped.Y
	el.Box.Width, el.Box.Height = clamped.W, clamped.H
	return clamped, nil
}

// ResizeFromHandle drags a corner handle by (dx, dy) inches. The opposite corner
// stays fixed; the size never goes below minSize.
func (t *Template) ResizeFromHandle(id string, handle Handle, dx, dy, minSize float64) (units.Rect, error) {
	el := t.Find(id)
	if el == nil {
		return units.Rect{}, fmt.Errorf("'%s': %w", id, ErrElementNotFound)
	}
	b := el.Box
	left, top := b.X, b.Y
	right, bottom := b.X+b.Width, b.Y+b.Height
	minSize = math.Max(0, minSize)

	switch handle {
	case HandleNW:
		left = math.Min(left+dx, right-minSize)
		top = math.Min(top+dy, bottom-minSize)
	case HandleNE:
		right = math.Max(right+dx, left+minSize)
		top = math.Min(top+dy, bottom-minSize)
	case HandleSW:
		left = math.Min(left+dx, right-minSize)
		bottom = math.Max(bottom+dy, top+minSize)
	case HandleSE:
		right = math.Max(right+dx, left+minSize)
		bottom = math.Max(bottom+dy, top+minSize)
	default:
		return units.Rect{}, fmt.Errorf("unknown resize handle '%s'", handle)
	}

	// Clamp the moving edges to the container without moving the fixed corner.
	loc, _ := t.locate(id)
	c := t.containerSize(loc)
	left, top = math.Max(0, left), math.Max(0, top)
	right, bottom = math.Min(c.W, right), math.Min(c.H, bottom)

	r := units.Rect{X: left, Y: top, W: math.Max(0, right-left), H: math.Max(0, bottom-top)}
	el.Box.X, el.Box.Y, el.Box.Width, el.Box.Height = r.X, r.Y, r.W, r.H
	return r, nil
}

// Rebind points a bindable element at column. An empty column turns the
// element back into a literal with the given content.
func (t *Template) Rebind(id, column, content string) error {
	el := t.Find(id)
	if el == nil {
		return fmt.Errorf("'%s': %w", id, ErrElementNotFound)
	}
	switch el.Type {
	case TypeText:
		el.Text.DataField, el.Text.Content = column, ""
		if column == "" {
			el.Text.Content = content
		}
	case TypeBarcode:
		el.Barcode.DataField, el.Barcode.Content = column, ""
		if column == "" {
			el.Barcode.Content = content
		}
	default:
		return fmt.Errorf("element '%s' of type %s cannot be bound", id, el.Type)
	}
	if t.Columns != nil {
		delete(t.Columns, id)
	}
	return nil
}
