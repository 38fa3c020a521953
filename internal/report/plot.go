package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoCurves is returned when no stroke in the report has handle curves.
var ErrNoCurves = errors.New("no credible drives to plot")

// Curve selects which handle curve to plot.
type Curve string

const (
	Force    Curve = "force"
	Velocity Curve = "velocity"
	Power    Curve = "power"
)

func (c Curve) label() string {
	switch c {
	case Velocity:
		return "Handle velocity (m/s)"
	case Power:
		return "Handle power (W)"
	default:
		return "Handle force (N)"
	}
}

// ParseCurve maps a name to a Curve.
func ParseCurve(name string) (Curve, error) {
	switch c := Curve(name); c {
	case Force, Velocity, Power:
		return c, nil
	}
	return "", fmt.Errorf("unknown curve %q (force, velocity or power)", name)
}

func (c Curve) values(st Stroke) []float64 {
	switch c {
	case Velocity:
		return st.Curves.HandleVelocity
	case Power:
		return st.Curves.HandlePower
	default:
		return st.Curves.HandleForce
	}
}

// PlotCurves overlays one handle curve per stroke against impulse number
// within the drive and saves it as an image at path. The format follows the
// file extension.
func (rep Report) PlotCurves(curve Curve, path string) error {
	var strokes []Stroke
	for _, st := range rep.Strokes {
		if st.Curves != nil && len(curve.values(st)) > 0 {
			strokes = append(strokes, st)
		}
	}
	if len(strokes) == 0 {
		return ErrNoCurves
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s per drive", curve.label())
	p.X.Label.Text = "Impulse"
	p.Y.Label.Text = curve.label()

	colors := generateColors(len(strokes))
	for i, st := range strokes {
		values := curve.values(st)
		pts := make(plotter.XYs, len(values))
		for j, v := range values {
			pts[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("stroke %d", st.Number), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// generateColors spreads n colours evenly around the hue circle.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
