package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Sink renders agent views to an output file.
type Sink interface {
	Render(views []AgentView, output string) error
}

// PNGSink draws, per agent, a bar chart of final scores above a heatmap of
// assignment scores, with agents side by side.
type PNGSink struct {
	Title string
}

const (
	pad         = 16
	titleH      = 36
	sectionH    = 22
	chartH      = 180
	sectionGap  = 28
	cellW       = 64
	cellH       = 22
	barSlotW    = 56
	minColumnW  = 320
	legendH     = 34
	charW       = 7
	sourceLabel = cellW/charW - 1
)

var (
	colorBG     = color.RGBA{255, 255, 255, 255}
	colorText   = color.RGBA{33, 33, 33, 255}
	colorAxis   = color.RGBA{120, 120, 120, 255}
	colorGrid   = color.RGBA{230, 230, 230, 255}
	colorBar    = color.RGBA{49, 107, 166, 255}
	colorEmpty  = color.RGBA{242, 242, 242, 255}
	coolEnd     = color.RGBA{59, 76, 192, 255}
	neutralMid  = color.RGBA{221, 221, 221, 255}
	warmEnd     = color.RGBA{180, 4, 38, 255}
	face        = basicfont.Face7x13
	defaultName = "Benchmark Instability Overview"
)

type column struct {
	view   AgentView
	labelW int
	width  int
	height int
}

func layout(v AgentView) column {
	labelW := 0
	for _, a := range v.Grid.Assignments {
		labelW = max(labelW, textWidth(a))
	}
	labelW += 10
	gridW := labelW + len(v.Grid.Sources)*cellW
	chartW := 40 + len(v.FinalScores)*barSlotW
	width := max(minColumnW, gridW, chartW, textWidth(v.Agent+" - Assignment Scores")) + 2*pad
	height := sectionH + chartH + sectionH + sectionGap +
		sectionH + (len(v.Grid.Assignments)+1)*cellH + legendH + pad
	return column{view: v, labelW: labelW, width: width, height: height}
}

func (s PNGSink) Render(views []AgentView, output string) error {
	if len(views) == 0 {
		return fmt.Errorf("rendering %s: no agents to draw", output)
	}
	cols := make([]column, len(views))
	width, height := 0, 0
	for i, v := range views {
		cols[i] = layout(v)
		width += cols[i].width
		height = max(height, cols[i].height)
	}
	height += titleH

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), colorBG)

	title := s.Title
	if title == "" {
		title = defaultName
	}
	drawText(img, (width-textWidth(title))/2, 24, title, colorText)

	x := 0
	for _, c := range cols {
		drawColumn(img, c, x, titleH)
		x += c.width
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", output, err)
	}
	return f.Close()
}

func drawColumn(img *image.RGBA, c column, x0, y0 int) {
	v := c.view
	left := x0 + pad
	y := y0

	drawText(img, left, y+14, v.Agent+" - Final Score by Run", colorText)
	y += sectionH
	drawBars(img, v.FinalScores, left, y, c.width-2*pad)
	y += chartH + sectionH + sectionGap

	drawText(img, left, y+14, v.Agent+" - Assignment Scores", colorText)
	y += sectionH
	drawHeatmap(img, v.Grid, left, y, c.labelW)
}

func drawBars(img *image.RGBA, points []FinalScorePoint, left, top, width int) {
	axisX := left + 30
	base := top + chartH
	plotH := chartH - 20

	for _, tick := range []float64{0, 0.5, 1} {
		ty := base - int(tick*float64(plotH))
		fill(img, image.Rect(axisX, ty, left+width, ty+1), colorGrid)
		drawText(img, left, ty+4, fmt.Sprintf("%.1f", tick), colorAxis)
	}
	fill(img, image.Rect(axisX, top, axisX+1, base), colorAxis)
	fill(img, image.Rect(axisX, base, left+width, base+1), colorAxis)

	barW := barSlotW * 7 / 10
	for i, p := range points {
		slot := axisX + 10 + i*barSlotW
		h := int(math.Round(clamp01(p.FinalScore) * float64(plotH)))
		bx := slot + (barSlotW-barW)/2
		fill(img, image.Rect(bx, base-h, bx+barW, base), colorBar)

		val := fmt.Sprintf("%.3f", p.FinalScore)
		drawText(img, bx+(barW-textWidth(val))/2, base-h-4, val, colorText)
		label := shortSource(p.Source, barSlotW/charW)
		drawText(img, slot+(barSlotW-textWidth(label))/2, base+14, label, colorAxis)
	}
}

func drawHeatmap(img *image.RGBA, g Grid, left, top, labelW int) {
	for i, a := range g.Assignments {
		y := top + i*cellH
		drawText(img, left, y+15, a, colorText)
		for j := range g.Sources {
			x := left + labelW + j*cellW
			r := image.Rect(x, y, x+cellW-1, y+cellH-1)
			cell := g.Cells[i][j]
			if cell.Count == 0 {
				fill(img, r, colorEmpty)
				drawText(img, x+(cellW-charW)/2, y+15, "-", colorAxis)
				continue
			}
			bg := coolwarm(cell.Mean)
			fill(img, r, bg)
			val := fmt.Sprintf("%.2f", cell.Mean)
			drawText(img, x+(cellW-textWidth(val))/2, y+15, val, contrastText(bg))
		}
	}
	labelY := top + len(g.Assignments)*cellH + 15
	for j, src := range g.Sources {
		label := shortSource(src, sourceLabel)
		x := left + labelW + j*cellW
		drawText(img, x+(cellW-textWidth(label))/2, labelY, label, colorAxis)
	}

	// colour scale legend, 0 to 1
	ly := labelY + 10
	lw := max(len(g.Sources)*cellW, 120)
	lx := left + labelW
	for i := 0; i < lw; i++ {
		fill(img, image.Rect(lx+i, ly, lx+i+1, ly+8), coolwarm(float64(i)/float64(lw-1)))
	}
	drawText(img, lx-textWidth("0")-4, ly+9, "0", colorAxis)
	drawText(img, lx+lw+4, ly+9, "1", colorAxis)
}

// coolwarm maps [0,1] onto a diverging blue-grey-red scale.
func coolwarm(v float64) color.RGBA {
	v = clamp01(v)
	if v < 0.5 {
		return lerp(coolEnd, neutralMid, v*2)
	}
	return lerp(neutralMid, warmEnd, (v-0.5)*2)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func contrastText(bg color.RGBA) color.Color {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum < 128 {
		return colorBG
	}
	return colorText
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// shortSource keeps the tail of a source name, where run numbers live.
func shortSource(src string, maxChars int) string {
	s := []rune(strings.TrimSuffix(src, ".json"))
	if maxChars < 2 || len(s) <= maxChars {
		return string(s)
	}
	return "~" + string(s[len(s)-maxChars+1:])
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}
