package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	ReportFile = "performance_report.txt"
	TrueFile   = "y_true.npy"
	PredFile   = "y_pred.npy"
	ROCFile    = "roc_curve.pdf"
)

// ReportExists reports whether dir already holds a completed run.
func ReportExists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ReportFile))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// FormatReport renders the textual performance report.
func FormatReport(s Scores, excluded int) string {
	var b strings.Builder
	b.WriteString("Performance results:\n")
	fmt.Fprintf(&b, "Accuracy: %.4f\n", s.Accuracy)
	fmt.Fprintf(&b, "F1-Score: %.4f\n", s.F1)
	fmt.Fprintf(&b, "AUC-ROC: %s\n", formatMetric(s.AUC))
	fmt.Fprintf(&b, "Payloads: %d evaluated, %d excluded\n\n", s.Total, excluded)
	fmt.Fprintf(&b, "Confusion: TP=%d FP=%d TN=%d FN=%d\n\n", s.Confusion.TP, s.Confusion.FP, s.Confusion.TN, s.Confusion.FN)
	b.WriteString("Classification report:\n")
	b.WriteString(ClassificationReport(s))
	return b.String()
}

// WriteArtifacts persists the vectors, the optional ROC plot and finally the
// report. The report is renamed into place last, so its presence implies the
// rest of the run was written.
func WriteArtifacts(dir, title string, yTrue, yPred []int, s Scores, excluded int, plot bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := WriteNPY(filepath.Join(dir, TrueFile), yTrue); err != nil {
		return fmt.Errorf("write %s: %w", TrueFile, err)
	}
	if err := WriteNPY(filepath.Join(dir, PredFile), yPred); err != nil {
		return fmt.Errorf("write %s: %w", PredFile, err)
	}

	if plot {
		scores := make([]float64, len(yPred))
		for i, p := range yPred {
			scores[i] = float64(p)
		}
		if fpr, tpr, err := ROCCurve(yTrue, scores); err == nil {
			panel := Panel{Title: title, Curves: []Curve{{Label: "ROC Curve", FPR: fpr, TPR: tpr, AUC: s.AUC}}}
			if err := WriteROCPlot(filepath.Join(dir, ROCFile), []Panel{panel}); err != nil {
				return fmt.Errorf("write %s: %w", ROCFile, err)
			}
		}
	}

	tmp, err := os.CreateTemp(dir, ReportFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(FormatReport(s, excluded)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, ReportFile))
}
