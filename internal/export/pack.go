package export

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/thereceipt/label-engine/internal/units"
)

// epsilon absorbs float error so that exactly fitting labels are counted.
const epsilon = 1e-9

// Papers are the named page sizes, in inches.
var Papers = map[string]units.Size{
	"letter": {W: 8.5, H: 11},
	"legal":  {W: 8.5, H: 14},
	"a4":     {W: units.InchesFromMM(210), H: units.InchesFromMM(297)},
	"a5":     {W: units.InchesFromMM(148), H: units.InchesFromMM(210)},
	"4x6":    {W: 4, H: 6},
}

// PaperNames lists the named page sizes.
func PaperNames() []string {
	names := make([]string, 0, len(Papers))
	for name := range Papers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePaper accepts a paper name or an explicit "WxH" size in inches.
func ParsePaper(s string) (units.Size, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if size, ok := Papers[key]; ok {
		return size, nil
	}
	w, h, found := strings.Cut(key, "x")
	if found {
		wf, errW := strconv.ParseFloat(w, 64)
		hf, errH := strconv.ParseFloat(h, 64)
		if errW == nil && errH == nil && wf > 0 && hf > 0 {
			return units.Size{W: wf, H: hf}, nil
		}
	}
	return units.Size{}, configErrorf("unknown paper size '%s' (use %s or WxH in inches)", s, strings.Join(PaperNames(), ", "))
}

// Grid is the arrangement of labels on a page. All lengths are inches.
type Grid struct {
	PerRow  int
	PerCol  int
	Label   units.Size
	OriginX float64 // left edge of the first column
	OriginY float64 // top edge of the first row
	StepX   float64 // distance between column origins
	StepY   float64
}

// PerPage is the number of labels on one page.
func (g Grid) PerPage() int { return g.PerRow * g.PerCol }

// Pages is the number of pages needed for n labels.
func (g Grid) Pages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + g.PerPage() - 1) / g.PerPage()
}

// Place returns the page and top-left position of the i-th label. Labels fill
// rows left to right, then top to bottom.
func (g Grid) Place(i int) (page int, x, y float64) {
	per := g.PerPage()
	page = i / per
	slot := i % per
	col, row := slot%g.PerRow, slot/g.PerRow
	return page, g.OriginX + float64(col)*g.StepX, g.OriginY + float64(row)*g.StepY
}

// Pack computes the largest grid of label-sized cells inside page less margin
// on every side. Labels are packed edge to edge from the top-left margin
// corner; with zeroWaste the leftover space is spread evenly before, between
// and after the labels, which centres the grid.
func Pack(page units.Size, margin float64, label units.Size, zeroWaste bool) (Grid, error) {
	if page.W <= 0 || page.H <= 0 {
		return Grid{}, configErrorf("page size must be positive, got %gx%g in", page.W, page.H)
	}
	if label.W <= 0 || label.H <= 0 {
		return Grid{}, configErrorf("label size must be positive, got %gx%g in", label.W, label.H)
	}
	if margin < 0 {
		return Grid{}, configErrorf("margin must not be negative, got %g in", margin)
	}

	usableW := page.W - 2*margin
	usableH := page.H - 2*margin
	if usableW <= 0 || usableH <= 0 {
		return Grid{}, configErrorf("margin %g in leaves no printable area on a %gx%g in page", margin, page.W, page.H)
	}

	perRow := int(math.Floor(usableW/label.W + epsilon))
	perCol := int(math.Floor(usableH/label.H + epsilon))
	if perRow < 1 || perCol < 1 {
		return Grid{}, configErrorf("label %gx%g in does not fit the printable area %gx%g in", label.W, label.H, usableW, usableH)
	}

	g := Grid{
		PerRow:  perRow,
		PerCol:  perCol,
		Label:   label,
		OriginX: margin,
		OriginY: margin,
		StepX:   label.W,
		StepY:   label.H,
	}
	if zeroWaste {
		gapX := math.Max(0, usableW-float64(perRow)*label.W) / float64(perRow+1)
		gapY := math.Max(0, usableH-float64(perCol)*label.H) / float64(perCol+1)
		g.OriginX += gapX
		g.OriginY += gapY
		g.StepX += gapX
		g.StepY += gapY
	}
	return g, nil
}
