// Package chart renders the dashboard charts as static inline SVG.
package chart

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/questions"
)

// canvas maps data coordinates onto an SVG viewport with margins.
type canvas struct {
	sb                     strings.Builder
	width, height          float64
	left, right, top, bot  float64
	xmin, xmax, ymin, ymax float64
}

func newCanvas(width, height float64) *canvas {
	return &canvas{width: width, height: height, left: 60, right: 20, top: 40, bot: 50}
}

func (c *canvas) domain(xmin, xmax, ymin, ymax float64) {
	c.xmin, c.xmax, c.ymin, c.ymax = xmin, xmax, ymin, ymax
}

func (c *canvas) x(v float64) float64 {
	return c.left + (v-c.xmin)/(c.xmax-c.xmin)*(c.width-c.left-c.right)
}

func (c *canvas) y(v float64) float64 {
	return c.height - c.bot - (v-c.ymin)/(c.ymax-c.ymin)*(c.height-c.top-c.bot)
}

func (c *canvas) printf(format string, args ...any) {
	fmt.Fprintf(&c.sb, format, args...)
}

func (c *canvas) open(class string) {
	c.printf(`<svg xmlns="http://www.w3.org/2000/svg" class="%s" viewBox="0 0 %.0f %.0f" width="100%%" role="img">`,
		class, c.width, c.height)
}

func (c *canvas) title(s string) {
	c.text(c.width/2, 22, "middle", "chart-title", s)
}

func (c *canvas) text(x, y float64, anchor, class, s string) {
	c.printf(`<text x="%.1f" y="%.1f" text-anchor="%s" class="%s">%s</text>`, x, y, anchor, class, html.EscapeString(s))
}

func (c *canvas) line(x1, y1, x2, y2 float64, stroke string, dashed bool) {
	dash := ""
	if dashed {
		dash = ` stroke-dasharray="4 3"`
	}
	c.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"%s/>`, x1, y1, x2, y2, stroke, dash)
}

func (c *canvas) rect(x1, y1, x2, y2 float64, fill, tooltip string) {
	x, y := math.Min(x1, x2), math.Min(y1, y2)
	c.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s">`, x, y, math.Abs(x2-x1), math.Abs(y2-y1), fill)
	if tooltip != "" {
		c.printf(`<title>%s</title>`, html.EscapeString(tooltip))
	}
	c.printf(`</rect>`)
}

func (c *canvas) String() string {
	return c.sb.String() + "</svg>"
}

// MapLabels are the localized texts of the Person-Item Map.
type MapLabels struct {
	Title    string
	Students string
	Items    string
	Axis     string
}

// PersonItemMap draws the ability histogram to the left of the logit axis,
// the mean and ±1 SD markers, and the items in one column per type.
func PersonItemMap(m irt.Map, l MapLabels) string {
	c := newCanvas(760, 640)
	c.domain(-0.5, 1.0, irt.ScaleMin, irt.ScaleMax)
	c.open("chart person-item-map")
	c.title(l.Title)

	for v := irt.ScaleMin; v <= irt.ScaleMax; v++ {
		c.line(c.x(-0.45), c.y(v), c.x(0.95), c.y(v), "#eee", false)
		c.text(c.left-8, c.y(v)+4, "end", "tick", fmt.Sprintf("%+.0f", v))
	}
	c.line(c.x(0), c.y(irt.ScaleMin), c.x(0), c.y(irt.ScaleMax), "#333", false)
	c.printf(`<text transform="translate(16 %.1f) rotate(-90)" text-anchor="middle" class="axis-label">%s</text>`,
		c.height/2, html.EscapeString(l.Axis))

	half := (irt.ScaleMax - irt.ScaleMin) / float64(len(m.Bins)) / 2
	for _, b := range m.Bins {
		if b.Count == 0 {
			continue
		}
		c.rect(c.x(b.Length), c.y(b.Center+half*0.9), c.x(0), c.y(b.Center-half*0.9), "#95a5a6",
			fmt.Sprintf("%.2f: %d", b.Center, b.Count))
	}

	markers := []struct {
		label string
		v     float64
	}{
		{"M", m.MeanAbility},
		{"S", m.MeanAbility - m.SDAbility},
		{"S", m.MeanAbility + m.SDAbility},
	}
	for _, mk := range markers {
		if mk.v < irt.ScaleMin || mk.v > irt.ScaleMax {
			continue
		}
		c.text(c.x(m.MarkerX), c.y(mk.v)+5, "middle", "marker", mk.label)
	}
	c.text(c.x(-0.2), c.height-20, "middle", "axis-label", l.Students)
	c.text(c.x(0.45), c.height-20, "middle", "axis-label", l.Items)

	for _, g := range m.Groups {
		c.printf(`<g class="item-type"><title>%s</title>`, html.EscapeString(g.Type))
		for _, it := range g.Items {
			y := c.y(clampScale(it.Logit))
			c.printf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"><title>%s: %.2f</title></circle>`,
				c.x(g.X), y, g.Color, html.EscapeString(it.Label), it.Logit)
			if g.LabelLeft {
				c.text(c.x(g.X)-7, y+3, "end", "item-label", it.Label)
			} else {
				c.text(c.x(g.X)+7, y+3, "start", "item-label", it.Label)
			}
		}
		c.printf(`</g>`)
	}
	return c.String()
}

// clampScale keeps item markers on the drawn scale.
func clampScale(v float64) float64 {
	return math.Max(irt.ScaleMin, math.Min(irt.ScaleMax, v))
}

// Boxplot draws one horizontal box per question type over facility 0..100.
func Boxplot(spreads []irt.TypeSpread, title string) string {
	rowH := 36.0
	c := newCanvas(760, 90+rowH*float64(max(1, len(spreads))))
	c.left = 200
	c.domain(0, 100, 0, float64(max(1, len(spreads))))
	c.open("chart boxplot")
	c.title(title)

	for v := 0.0; v <= 100; v += 20 {
		c.line(c.x(v), c.y(0), c.x(v), c.y(c.ymax), "#eee", false)
		c.text(c.x(v), c.height-c.bot+18, "middle", "tick", fmt.Sprintf("%.0f", v))
	}
	for i, s := range spreads {
		mid := c.y(float64(i) + 0.5)
		st := s.Stats
		c.text(c.left-8, mid+4, "end", "tick", s.Type)
		c.line(c.x(st.Min), mid, c.x(st.Q1), mid, s.Color, false)
		c.line(c.x(st.Q3), mid, c.x(st.Max), mid, s.Color, false)
		c.rect(c.x(st.Q1), mid-rowH*0.3, c.x(st.Q3), mid+rowH*0.3, s.Color,
			fmt.Sprintf("n=%d min=%.1f q1=%.1f median=%.1f q3=%.1f max=%.1f mean=%.1f sd=%.1f",
				st.N, st.Min, st.Q1, st.Median, st.Q3, st.Max, st.Mean, st.SD))
		c.line(c.x(st.Median), mid-rowH*0.3, c.x(st.Median), mid+rowH*0.3, "#fff", false)
		c.line(c.x(st.Mean), mid-rowH*0.35, c.x(st.Mean), mid+rowH*0.35, "#333", true)
	}
	return c.String()
}

// DistributionLabels are the localized texts of the category charts.
type DistributionLabels struct {
	CountTitle     string
	MetricsTitle   string
	Difficulty     string
	Discrimination string
	Efficiency     string
	MarkedNote     string
}

var metricColors = [3]string{"#e74c3c", "#2ecc71", "#f39c12"}

// CategoryCounts draws the number of subquestions per category. Marked
// categories keep their slot without a bar.
func CategoryCounts(cats []questions.CategoryStat, l DistributionLabels) string {
	maxCount := 1
	for _, cs := range cats {
		maxCount = max(maxCount, cs.Count)
	}
	c := newCanvas(460, 360)
	c.domain(0, float64(max(1, len(cats))), 0, float64(maxCount)*1.15)
	c.open("chart category-counts")
	c.title(l.CountTitle)
	marked := categoryAxis(c, cats)
	for i, cs := range cats {
		if cs.Marked || cs.Count == 0 {
			continue
		}
		x := float64(i)
		c.rect(c.x(x+0.15), c.y(float64(cs.Count)), c.x(x+0.85), c.y(0), "#3498db", fmt.Sprintf("%s: %d", cs.ID, cs.Count))
		c.text(c.x(x+0.5), c.y(float64(cs.Count))-4, "middle", "value", fmt.Sprint(cs.Count))
	}
	if marked {
		c.text(c.width/2, c.height-6, "middle", "note", l.MarkedNote)
	}
	return c.String()
}

// CategoryMetrics draws mean difficulty, discrimination and efficiency per
// category as grouped bars.
func CategoryMetrics(cats []questions.CategoryStat, l DistributionLabels) string {
	top := 100.0
	for _, cs := range cats {
		top = math.Max(top, 1.1*math.Max(cs.MeanDifficulty, math.Max(cs.MeanDiscrimination, cs.MeanEfficiency)))
	}
	c := newCanvas(460, 360)
	c.domain(0, float64(max(1, len(cats))), 0, top)
	c.open("chart category-metrics")
	c.title(l.MetricsTitle)
	marked := categoryAxis(c, cats)
	names := [3]string{l.Difficulty, l.Discrimination, l.Efficiency}
	for i, cs := range cats {
		if cs.Marked {
			continue
		}
		values := [3]float64{cs.MeanDifficulty, cs.MeanDiscrimination, cs.MeanEfficiency}
		for k, v := range values {
			if v <= 0 {
				continue
			}
			x := float64(i) + 0.1 + 0.27*float64(k)
			c.rect(c.x(x), c.y(v), c.x(x+0.25), c.y(0), metricColors[k], fmt.Sprintf("%s %s: %.2f", cs.ID, names[k], v))
		}
	}
	for k, name := range names {
		x := c.left + float64(k)*130
		c.rect(x, c.top-8, x+10, c.top+2, metricColors[k], "")
		c.text(x+14, c.top+1, "start", "legend", name)
	}
	if marked {
		c.text(c.width/2, c.height-6, "middle", "note", l.MarkedNote)
	}
	return c.String()
}

func categoryAxis(c *canvas, cats []questions.CategoryStat) (anyMarked bool) {
	c.line(c.x(0), c.y(0), c.x(c.xmax), c.y(0), "#333", false)
	for i, cs := range cats {
		c.text(c.x(float64(i)+0.5), c.y(0)+16, "middle", "tick", cs.ID)
		anyMarked = anyMarked || cs.Marked
	}
	return anyMarked
}
