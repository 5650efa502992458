package evaluation

import (
	"fmt"
	"math"

	gofpdf "github.com/go-pdf/fpdf"
)

// Curve is one ROC line of a plot.
type Curve struct {
	Label string
	FPR   []float64
	TPR   []float64
	AUC   float64
}

// Panel is one page of a ROC plot document.
type Panel struct {
	Title  string
	Curves []Curve
}

var curveColors = [][3]int{
	{31, 119, 180}, {255, 127, 14}, {44, 160, 44}, {214, 39, 40},
	{148, 103, 189}, {140, 86, 75}, {227, 119, 194}, {127, 127, 127},
}

const (
	plotX    = 30.0
	plotY    = 35.0
	plotSize = 150.0
)

// WriteROCPlot renders each panel on its own A4 page.
func WriteROCPlot(path string, panels []Panel) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	for _, p := range panels {
		pdf.AddPage()
		drawPanel(pdf, p)
	}
	return pdf.OutputFileAndClose(path)
}

func drawPanel(pdf *gofpdf.Fpdf, p Panel) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(plotX, 18)
	pdf.CellFormat(plotSize, 8, p.Title, "", 1, "C", false, 0, "")

	// grid and tick labels
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetLineWidth(0.1)
	pdf.SetDrawColor(220, 220, 220)
	for i := 0; i <= 5; i++ {
		v := float64(i) / 5
		x, y := toPage(v, v)
		pdf.Line(x, plotY, x, plotY+plotSize)
		pdf.Line(plotX, y, plotX+plotSize, y)
		pdf.Text(x-2.5, plotY+plotSize+5, fmt.Sprintf("%.1f", v))
		pdf.Text(plotX-8, y+1, fmt.Sprintf("%.1f", v))
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Rect(plotX, plotY, plotSize, plotSize, "D")

	pdf.SetDrawColor(128, 128, 128)
	pdf.SetDashPattern([]float64{2, 2}, 0)
	x0, y0 := toPage(0, 0)
	x1, y1 := toPage(1, 1)
	pdf.Line(x0, y0, x1, y1)
	pdf.SetDashPattern([]float64{}, 0)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(plotX+plotSize/2-15, plotY+plotSize+12, "False Positive Rate")
	pdf.TransformBegin()
	pdf.TransformRotate(90, plotX-13, plotY+plotSize/2+15)
	pdf.Text(plotX-13, plotY+plotSize/2+15, "True Positive Rate")
	pdf.TransformEnd()

	pdf.SetLineWidth(0.6)
	legendY := plotY + plotSize + 22
	for i, c := range p.Curves {
		col := curveColors[i%len(curveColors)]
		pdf.SetDrawColor(col[0], col[1], col[2])
		for k := 1; k < len(c.FPR) && k < len(c.TPR); k++ {
			ax, ay := toPage(c.FPR[k-1], c.TPR[k-1])
			bx, by := toPage(c.FPR[k], c.TPR[k])
			pdf.Line(ax, ay, bx, by)
		}

		y := legendY + float64(i)*6
		pdf.Line(plotX, y-1, plotX+8, y-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(plotX+11, y, fmt.Sprintf("%s (AUC = %s)", c.Label, formatMetric(c.AUC)))
	}
}

func toPage(fpr, tpr float64) (float64, float64) {
	return plotX + fpr*plotSize, plotY + plotSize - tpr*plotSize
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.4f", v)
}
