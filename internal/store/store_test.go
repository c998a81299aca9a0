package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func sampleTemplate() *labelformat.Template {
	tpl := labelformat.New("shelf", 2, 1)
	tpl.Elements = []labelformat.Element{{
		ID:   "sku",
		Type: labelformat.TypeText,
		Box:  labelformat.Box{X: 0.1, Y: 0.1, Width: 1, Height: 0.3},
		Text: &labelformat.Text{DataField: "sku"},
	}}
	return tpl
}

func sampleDataset() *labelformat.Dataset {
	cols := []string{"sku", "qty"}
	return &labelformat.Dataset{
		Columns: cols,
		Rows: []labelformat.DataRow{
			labelformat.NewRow(cols, []string{"A-1", "2"}),
			labelformat.NewRow(cols, []string{"B-2", "0"}),
		},
	}
}

func TestCreateAndGetProject(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	p, err := s.CreateProject("", sampleTemplate())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "shelf", p.Name)
	assert.Equal(t, labelformat.DefaultQuantity(), p.Quantity)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "sku", got.Template.Elements[0].ID)
}

func TestGetProject_ReturnsCopy(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	p, err := s.CreateProject("copy", sampleTemplate())
	require.NoError(t, err)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	got.Template.Elements[0].Box.X = 1.5
	got.Name = "changed"

	again, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.1, again.Template.Elements[0].Box.X)
	assert.Equal(t, "copy", again.Name)
}

func TestNotFound(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	_, err = s.GetProject("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteProject("nope"), ErrNotFound))
	assert.True(t, errors.Is(s.SetQuantity("nope", labelformat.DefaultQuantity()), ErrNotFound))
	_, err = s.GetDataset("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateTemplate(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	p, err := s.CreateProject("edit", sampleTemplate())
	require.NoError(t, err)

	var box units.Rect
	tpl, err := s.UpdateTemplate(p.ID, func(draft *labelformat.Template) error {
		var editErr error
		box, editErr = draft.UpdateElementBox("sku", units.Rect{X: 1.5, Y: 0, W: 1, H: 0.3})
		return editErr
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, box.X, 1e-9, "box is clamped to the canvas")
	assert.InDelta(t, 1.0, tpl.Elements[0].Box.X, 1e-9)

	// a failing edit leaves the stored template alone
	_, err = s.UpdateTemplate(p.ID, func(draft *labelformat.Template) error {
		draft.Elements[0].Box.X = 0
		return errors.New("rejected")
	})
	assert.Error(t, err)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Template.Elements[0].Box.X, 1e-9)
}

func TestDatasetRoundTrip(t *testing.T) {
	for name, dir := range map[string]string{"memory": "", "disk": t.TempDir()} {
		t.Run(name, func(t *testing.T) {
			s, err := New(dir)
			require.NoError(t, err)
			p, err := s.CreateProject("data", sampleTemplate())
			require.NoError(t, err)

			empty, err := s.GetDataset(p.ID)
			require.NoError(t, err)
			assert.Empty(t, empty.Rows)

			info, err := s.PutDataset(p.ID, "rows.csv", sampleDataset())
			require.NoError(t, err)
			assert.Equal(t, 2, info.Rows)
			assert.Equal(t, []string{"sku", "qty"}, info.Columns)

			ds, err := s.GetDataset(p.ID)
			require.NoError(t, err)
			require.Len(t, ds.Rows, 2)
			v, ok := ds.Rows[1].String("sku")
			assert.True(t, ok)
			assert.Equal(t, "B-2", v)
			assert.Equal(t, []string{"sku", "qty"}, ds.Rows[0].Columns())
		})
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	p, err := s.CreateProject("persist", sampleTemplate())
	require.NoError(t, err)
	_, err = s.PutDataset(p.ID, "rows.csv", sampleDataset())
	require.NoError(t, err)
	plan := labelformat.QuantityPlan{Type: labelformat.QuantityManual, Manual: map[int]int{0: 4}}
	require.NoError(t, s.SetQuantity(p.ID, plan))

	reopened, err := New(dir)
	require.NoError(t, err)

	got, err := reopened.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist", got.Name)
	assert.Equal(t, plan, got.Quantity)
	require.NotNil(t, got.Dataset)
	assert.Equal(t, "rows.csv", got.Dataset.FileName)

	ds, err := reopened.GetDataset(p.ID)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
}

func TestDeleteProject(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	p, err := s.CreateProject("gone", sampleTemplate())
	require.NoError(t, err)
	_, err = s.PutDataset(p.ID, "rows.csv", sampleDataset())
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(p.ID))

	list, err := s.ListProjects()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListProjects(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.CreateProject(name, sampleTemplate())
		require.NoError(t, err)
	}

	list, err := s.ListProjects()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
