package labelformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/label-engine/internal/units"
)

func groupedTemplate() *Template {
	tpl := sampleTemplate()
	tpl.Elements = append(tpl.Elements,
		Element{ID: "outer", Type: TypeGroup, Box: Box{X: 0, Y: 0, Width: 1, Height: 1}, Group: &Group{
			Children: []Element{
				{ID: "inner", Type: TypeGroup, Box: Box{Width: 0.5, Height: 0.5}, Group: &Group{}},
				{ID: "logo", Type: TypeShape, Box: Box{Width: 0.2, Height: 0.2}, Shape: &Shape{Kind: "rect"}},
			},
		}},
	)
	return tpl
}

func TestUpdateElementBox_Clamps(t *testing.T) {
	tpl := sampleTemplate()

	got, err := tpl.UpdateElementBox("sku", units.Rect{X: 1.5, Y: -0.3, W: 1, H: 0.25})
	require.NoError(t, err)
	assert.Equal(t, units.Rect{X: 1, Y: 0, W: 1, H: 0.25}, got)

	el := tpl.Find("sku")
	assert.Equal(t, 1.0, el.Box.X)
	assert.Equal(t, 0.0, el.Box.Y)

	_, err = tpl.UpdateElementBox("nope", units.Rect{})
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestUpdateElementBox_ClampsToGroup(t *testing.T) {
	tpl := groupedTemplate()

	got, err := tpl.UpdateElementBox("logo", units.Rect{X: 0.95, Y: 0.1, W: 0.2, H: 0.2})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.X, 1e-9)
}

func TestResizeFromHandle(t *testing.T) {
	start := Box{X: 0.5, Y: 0.25, Width: 1, Height: 0.5}

	tests := []struct {
		handle Handle
		dx, dy float64
		want   units.Rect
	}{
		{HandleSE, 0.2, 0.1, units.Rect{X: 0.5, Y: 0.25, W: 1.2, H: 0.6}},
		{HandleNW, 0.25, 0.125, units.Rect{X: 0.75, Y: 0.375, W: 0.75, H: 0.375}},
		{HandleNE, 0.25, -0.125, units.Rect{X: 0.5, Y: 0.125, W: 1.25, H: 0.625}},
		{HandleSW, -0.25, 0.125, units.Rect{X: 0.25, Y: 0.25, W: 1.25, H: 0.625}},
		// dragging past the opposite corner stops at the minimum size
		{HandleNW, 2, 2, units.Rect{X: 1.4, Y: 0.65, W: 0.1, H: 0.1}},
		// the moving edge is clamped to the canvas
		{HandleSE, 5, 5, units.Rect{X: 0.5, Y: 0.25, W: 1.5, H: 0.75}},
	}

	for _, tt := range tests {
		tpl := sampleTemplate()
		tpl.Elements[0].Box = start

		got, err := tpl.ResizeFromHandle("sku", tt.handle, tt.dx, tt.dy, 0.1)
		require.NoError(t, err)
		assert.InDelta(t, tt.want.X, got.X, 1e-9, "%s x", tt.handle)
		assert.InDelta(t, tt.want.Y, got.Y, 1e-9, "%s y", tt.handle)
		assert.InDelta(t, tt.want.W, got.W, 1e-9, "%s w", tt.handle)
		assert.InDelta(t, tt.want.H, got.H, 1e-9, "%s h", tt.handle)
	}

	tpl := sampleTemplate()
	_, err := tpl.ResizeFromHandle("sku", "n", 0, 0, 0)
	assert.Error(t, err)
}

func TestMoveElement_TransfersOwnership(t *testing.T) {
	tpl := groupedTemplate()

	require.NoError(t, tpl.MoveElement("sku", "inner", 0))

	assert.Len(t, tpl.Elements, 2)
	inner := tpl.Find("inner")
	require.NotNil(t, inner)
	require.Len(t, inner.Group.Children, 1)
	assert.Equal(t, "sku", inner.Group.Children[0].ID)

	count := 0
	Walk(tpl.Elements, func(el *Element, _ *Element) bool {
		if el.ID == "sku" {
			count++
		}
		return true
	})
	assert.Equal(t, 1, count)
	assert.NoError(t, Validate(tpl))
}

func TestMoveElement_RejectsCycles(t *testing.T) {
	tpl := groupedTemplate()

	assert.ErrorIs(t, tpl.MoveElement("outer", "inner", 0), ErrCycle)
	assert.ErrorIs(t, tpl.MoveElement("outer", "outer", 0), ErrCycle)
	assert.Error(t, tpl.MoveElement("sku", "logo", 0))
	assert.NotNil(t, tpl.Find("outer"))
}

func TestMoveElement_ReordersWithinCanvas(t *testing.T) {
	tpl := sampleTemplate()

	require.NoError(t, tpl.MoveElement("upc", "", 0))
	assert.Equal(t, "upc", tpl.Elements[0].ID)
	assert.Equal(t, "sku", tpl.Elements[1].ID)
}

func TestAddAndRemoveElement(t *testing.T) {
	tpl := groupedTemplate()

	err := tpl.AddElement("inner", Element{ID: "note", Type: TypeText, Text: &Text{Content: "x"}})
	require.NoError(t, err)
	assert.NotNil(t, tpl.Find("note"))

	assert.Error(t, tpl.AddElement("", Element{ID: "note", Type: TypeText}))
	assert.Error(t, tpl.AddElement("sku", Element{ID: "other", Type: TypeText}))
	assert.ErrorIs(t, tpl.AddElement("ghost", Element{ID: "other", Type: TypeText}), ErrElementNotFound)

	removed, err := tpl.RemoveElement("outer")
	require.NoError(t, err)
	assert.Equal(t, "outer", removed.ID)
	assert.Nil(t, tpl.Find("note"))
	assert.Nil(t, tpl.Find("inner"))
}

func TestRebind(t *testing.T) {
	tpl := sampleTemplate()

	require.NoError(t, tpl.Rebind("sku", "Name", ""))
	assert.Equal(t, "Name", tpl.Find("sku").Text.DataField)

	require.NoError(t, tpl.Rebind("upc", "", "5901234123457"))
	assert.Equal(t, "5901234123457", tpl.Find("upc").Barcode.Content)
	assert.Empty(t, tpl.Find("upc").Barcode.DataField)
	assert.NoError(t, Validate(tpl))
}
