package layout

import (
	"fmt"
	"html"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

var outlineColors = map[labelformat.ElementType]string{
	labelformat.TypeText:    "#1f77b4",
	labelformat.TypeBarcode: "#2ca02c",
	labelformat.TypeImage:   "#9467bd",
	labelformat.TypeShape:   "#7f7f7f",
	labelformat.TypeGroup:   "#ff7f0e",
}

// WriteSVG draws the resolved boxes as outlined rectangles at dpi. It is a
// debugging view of the layout, not a rendering of the label.
func (t *Tree) WriteSVG(w io.Writer, dpi float64) {
	width, height := t.CanvasPixels(dpi)

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Title(fmt.Sprintf("layout %gx%g in @ %g dpi", t.Width, t.Height, dpi))
	canvas.Rect(0, 0, width, height, "fill:#ffffff;stroke:#000000;stroke-width:1")

	var draw func(nodes []*Node, depth int)
	draw = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			r := n.Box.ToPixels(dpi)
			canvas.Group(fmt.Sprintf(`id="%s"`, html.EscapeString(n.ID)), fmt.Sprintf(`data-kind="%s"`, n.Kind))
			canvas.Rect(r.X, r.Y, r.W, r.H,
				fmt.Sprintf("fill:none;stroke:%s;stroke-width:1;stroke-dasharray:%d", outlineColors[n.Kind], depth*2))
			label := n.ID
			if n.Value != "" {
				label += ": " + n.Value
			}
			canvas.Text(r.X+2, r.Y+10, label, "font-size:9px;font-family:monospace;fill:"+outlineColors[n.Kind])
			draw(n.Children, depth+1)
			canvas.Gend()
		}
	}
	draw(t.Nodes, 0)

	canvas.End()
}
