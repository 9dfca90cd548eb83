// Package figure renders captured step responses to PNG
package figure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"steplab/protocol"
)

// ErrNoData is returned when every run is empty
var ErrNoData = errors.New("figure: no points to draw")

// Options controls figure size and labelling
type Options struct {
	PeriodMS uint32
	Setpoint float64 // Drawn as a dashed line when non-zero
	Width    vg.Length
	Height   vg.Length
	DPI      int
}

// DefaultOptions returns an 8x6 inch figure at 150 DPI
func DefaultOptions(periodMS uint32) Options {
	return Options{
		PeriodMS: periodMS,
		Width:    8 * vg.Inch,
		Height:   6 * vg.Inch,
		DPI:      150,
	}
}

// New builds a position-versus-time plot with one line per run
func New(runs []protocol.Run, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Flywheel Position, Controller Period=%d", opts.PeriodMS)
	p.X.Label.Text = "Time [ms]"
	p.Y.Label.Text = "Position [rad]"
	p.Add(plotter.NewGrid())

	maxPos := 7.0
	lines := 0
	for i, run := range runs {
		if len(run.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(run.Points))
		for j, pt := range run.Points {
			pts[j].X = pt.TimeMS
			pts[j].Y = pt.Position
			if pt.Position > maxPos {
				maxPos = pt.Position
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(legendName(run, i), line)
		lines++
	}
	if lines == 0 {
		return nil, ErrNoData
	}

	if opts.Setpoint != 0 {
		ref := plotter.NewFunction(func(float64) float64 { return opts.Setpoint })
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		ref.Color = plotutil.Color(lines)
		p.Add(ref)
		p.Legend.Add("setpoint", ref)
		if opts.Setpoint > maxPos {
			maxPos = opts.Setpoint
		}
	}

	p.Y.Min = 0
	p.Y.Max = maxPos
	p.Legend.Top = false
	return p, nil
}

func legendName(run protocol.Run, i int) string {
	if run.Axis > 0 {
		return fmt.Sprintf("motor %d", run.Axis)
	}
	return fmt.Sprintf("run %d", i+1)
}

// WritePNG renders runs as PNG into w
func WritePNG(w io.Writer, runs []protocol.Run, opts Options) error {
	p, err := New(runs, opts)
	if err != nil {
		return err
	}
	c := vgimg.NewWith(
		vgimg.UseWH(opts.Width, opts.Height),
		vgimg.UseDPI(opts.DPI),
	)
	p.Draw(draw.New(c))

	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return nil
}

// SavePNG renders runs into the named file
func SavePNG(filename string, runs []protocol.Run, opts Options) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WritePNG(bw, runs, opts); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
