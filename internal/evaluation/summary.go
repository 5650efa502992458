package evaluation

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	SummaryFile     = "performance_summary.csv"
	CombinedROCFile = "combined_roc_curves.pdf"
)

// SummaryRow holds the cross-model metrics of one result directory. F1 is the
// support-weighted average over both classes.
type SummaryRow struct {
	Dataset   string
	Model     string
	AUC       float64
	Accuracy  float64
	F1        float64
	Precision float64
	Recall    float64

	fpr, tpr []float64
}

// Summarize reads every <resultsDir>/<dataset>/<model>/ holding both
// vectors, sorted by dataset then model. Directories without vectors are
// ignored.
func Summarize(resultsDir string) ([]SummaryRow, error) {
	datasets, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, err
	}
	var rows []SummaryRow
	for _, ds := range datasets {
		if !ds.IsDir() {
			continue
		}
		models, err := os.ReadDir(filepath.Join(resultsDir, ds.Name()))
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			if !m.IsDir() {
				continue
			}
			dir := filepath.Join(resultsDir, ds.Name(), m.Name())
			row, ok, err := summarizeDir(dir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", dir, err)
			}
			if !ok {
				continue
			}
			row.Dataset, row.Model = ds.Name(), m.Name()
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Dataset != rows[j].Dataset {
			return rows[i].Dataset < rows[j].Dataset
		}
		return rows[i].Model < rows[j].Model
	})
	return rows, nil
}

func summarizeDir(dir string) (SummaryRow, bool, error) {
	truePath, predPath := filepath.Join(dir, TrueFile), filepath.Join(dir, PredFile)
	if _, err := os.Stat(truePath); os.IsNotExist(err) {
		return SummaryRow{}, false, nil
	}
	if _, err := os.Stat(predPath); os.IsNotExist(err) {
		return SummaryRow{}, false, nil
	}

	yTrue, err := ReadNPY(truePath)
	if err != nil {
		return SummaryRow{}, false, err
	}
	yPred, err := ReadNPY(predPath)
	if err != nil {
		return SummaryRow{}, false, err
	}
	s, err := Score(yTrue, yPred)
	if err != nil {
		return SummaryRow{}, false, err
	}

	row := SummaryRow{
		AUC:       s.AUC,
		Accuracy:  s.Accuracy,
		F1:        s.WeightedAvg.F1,
		Precision: s.Precision,
		Recall:    s.Recall,
	}
	scores := make([]float64, len(yPred))
	for i, p := range yPred {
		scores[i] = float64(p)
	}
	if fpr, tpr, err := ROCCurve(yTrue, scores); err == nil {
		row.fpr, row.tpr = fpr, tpr
	}
	return row, true, nil
}

// WriteSummaryCSV writes one line per row under a header.
func WriteSummaryCSV(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	records := [][]string{{"Dataset", "Model", "AUC", "Accuracy", "F1-Score", "Precision (Blocked)", "Recall (Blocked)"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Dataset,
			r.Model,
			strconv.FormatFloat(r.AUC, 'f', -1, 64),
			strconv.FormatFloat(r.Accuracy, 'f', -1, 64),
			strconv.FormatFloat(r.F1, 'f', -1, 64),
			strconv.FormatFloat(r.Precision, 'f', -1, 64),
			strconv.FormatFloat(r.Recall, 'f', -1, 64),
		})
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CombinedPanels groups the rows into one ROC panel per dataset.
func CombinedPanels(rows []SummaryRow) []Panel {
	var panels []Panel
	for _, r := range rows {
		if r.fpr == nil {
			continue
		}
		if len(panels) == 0 || panels[len(panels)-1].Title != r.Dataset {
			panels = append(panels, Panel{Title: r.Dataset})
		}
		p := &panels[len(panels)-1]
		p.Curves = append(p.Curves, Curve{Label: r.Model, FPR: r.fpr, TPR: r.tpr, AUC: r.AUC})
	}
	return panels
}

// WriteSummary writes the CSV table and the combined ROC document into outDir.
func WriteSummary(resultsDir, outDir string) ([]SummaryRow, error) {
	rows, err := Summarize(resultsDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := WriteSummaryCSV(filepath.Join(outDir, SummaryFile), rows); err != nil {
		return nil, err
	}
	if panels := CombinedPanels(rows); len(panels) > 0 {
		if err := WriteROCPlot(filepath.Join(outDir, CombinedROCFile), panels); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
