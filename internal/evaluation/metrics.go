// Package evaluation replays labeled corpora through a decider and persists
// the resulting classification metrics per (dataset, model) pair.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrNoPredictions is returned when every payload of a run was excluded.
var ErrNoPredictions = errors.New("no predictions to score")

// ClassNames label the negative (0) and positive (1) class in reports.
var ClassNames = [2]string{"Allowed", "Blocked"}

type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

type Confusion struct {
	TP, FP, TN, FN int
}

// Scores holds the metrics of one run. F1, Precision and Recall refer to the
// positive class (Blocked). AUC is NaN when only one class is present.
type Scores struct {
	Accuracy  float64
	F1        float64
	Precision float64
	Recall    float64
	AUC       float64

	Classes     [2]ClassMetrics
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Confusion   Confusion
	Total       int
}

// Score computes the metrics of binary predictions against ground truth.
func Score(yTrue, yPred []int) (Scores, error) {
	if len(yTrue) != len(yPred) {
		return Scores{}, fmt.Errorf("length mismatch: %d labels, %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Scores{}, ErrNoPredictions
	}

	var c Confusion
	for i := range yTrue {
		if (yTrue[i] != 0 && yTrue[i] != 1) || (yPred[i] != 0 && yPred[i] != 1) {
			return Scores{}, fmt.Errorf("non-binary value at %d", i)
		}
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.FP++
		case yTrue[i] == 0 && yPred[i] == 0:
			c.TN++
		default:
			c.FN++
		}
	}

	s := Scores{Confusion: c, Total: len(yTrue)}
	s.Accuracy = float64(c.TP+c.TN) / float64(s.Total)

	s.Classes[1] = classMetrics(c.TP, c.FP, c.FN)
	s.Classes[0] = classMetrics(c.TN, c.FN, c.FP)
	s.Precision, s.Recall, s.F1 = s.Classes[1].Precision, s.Classes[1].Recall, s.Classes[1].F1

	for _, cm := range s.Classes {
		w := float64(cm.Support) / float64(s.Total)
		s.MacroAvg.Precision += cm.Precision / 2
		s.MacroAvg.Recall += cm.Recall / 2
		s.MacroAvg.F1 += cm.F1 / 2
		s.WeightedAvg.Precision += cm.Precision * w
		s.WeightedAvg.Recall += cm.Recall * w
		s.WeightedAvg.F1 += cm.F1 * w
	}
	s.MacroAvg.Support, s.WeightedAvg.Support = s.Total, s.Total

	scores := make([]float64, len(yPred))
	for i, p := range yPred {
		scores[i] = float64(p)
	}
	auc, err := ROCAUC(yTrue, scores)
	if err != nil {
		auc = math.NaN()
	}
	s.AUC = auc
	return s, nil
}

// classMetrics treats undefined ratios as 0.
func classMetrics(tp, fp, fn int) ClassMetrics {
	cm := ClassMetrics{Support: tp + fn}
	if tp+fp > 0 {
		cm.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		cm.Recall = float64(tp) / float64(tp+fn)
	}
	if cm.Precision+cm.Recall > 0 {
		cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
	}
	return cm
}

// ROCCurve returns false and true positive rates at every distinct score
// threshold, highest first, starting at (0,0) and ending at (1,1).
func ROCCurve(yTrue []int, scores []float64) (fpr, tpr []float64, err error) {
	if len(yTrue) != len(scores) {
		return nil, nil, fmt.Errorf("length mismatch: %d labels, %d scores", len(yTrue), len(scores))
	}
	var pos, neg int
	for _, y := range yTrue {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, errors.New("ROC curve needs both classes present")
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	fpr, tpr = []float64{0}, []float64{0}
	var tp, fp int
	for k, i := range idx {
		if yTrue[i] == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(idx) && scores[idx[k+1]] == scores[i] {
			continue
		}
		fpr = append(fpr, float64(fp)/float64(neg))
		tpr = append(tpr, float64(tp)/float64(pos))
	}
	return fpr, tpr, nil
}

// ROCAUC integrates the ROC curve with the trapezoidal rule.
func ROCAUC(yTrue []int, scores []float64) (float64, error) {
	fpr, tpr, err := ROCCurve(yTrue, scores)
	if err != nil {
		return 0, err
	}
	var area float64
	for i := 1; i < len(fpr); i++ {
		area += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	return area, nil
}

// ClassificationReport renders the per-class table in the layout of
// scikit-learn's classification_report with two decimals.
func ClassificationReport(s Scores) string {
	const width = len("weighted avg")
	var b strings.Builder

	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for i, cm := range s.Classes {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, ClassNames[i], cm.Precision, cm.Recall, cm.F1, cm.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", s.Accuracy, s.Total)
	for _, row := range []struct {
		name string
		cm   ClassMetrics
	}{{"macro avg", s.MacroAvg}, {"weighted avg", s.WeightedAvg}} {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, row.name, row.cm.Precision, row.cm.Recall, row.cm.F1, row.cm.Support)
	}
	return b.String()
}
