package metrics

import (
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// SavePredictionPlot は予測値と実測値の散布図を path に保存する。
// 拡張子（.png, .svg, .pdf）で出力形式が決まる。対角線 y = x も描く。
func SavePredictionPlot(yTrue, yPred mat.Matrix, title, path string) error {
	t, p, err := matrixPair("SavePredictionPlot", yTrue, yPred)
	if err != nil {
		return err
	}

	n := t.Len()
	pts := make(plotter.XYs, n)
	all := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		pts[i].X = t.AtVec(i)
		pts[i].Y = p.AtVec(i)
		all = append(all, pts[i].X, pts[i].Y)
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "actual"
	pl.Y.Label.Text = "predicted"

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "SavePredictionPlot: scatter")
	}
	s.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	s.Radius = vg.Points(2)
	pl.Add(s)

	lo, hi := floats.Min(all), floats.Max(all)
	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "SavePredictionPlot: diagonal")
	}
	diag.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	pl.Add(diag)

	if err := pl.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "SavePredictionPlot: save %s", path)
	}
	return nil
}
