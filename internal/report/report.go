package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/mind-engage/examportal/internal/exam"
	"github.com/mind-engage/examportal/internal/grading"
	"github.com/mind-engage/examportal/internal/profile"
)

const FooterText = "Atlantic Bakery Exam System"

// Data is everything printed on a score report.
type Data struct {
	AttemptID   string
	Examiner    string
	Designation string
	StoreArea   string
	ExamType    string
	DateTaken   time.Time
	Score       int
	Total       int
	Items       []Item
}

type Item struct {
	Text    string
	Answer  string
	Correct string // empty for essays
}

func (d Data) Percentage() int { return grading.Percentage(d.Score, d.Total) }
func (d Data) Passed() bool    { return grading.Passed(d.Score, d.Total) }

// FromAttempt assembles report data for a finalized attempt. ex may be nil for users
// without an examiner profile.
func FromAttempt(a exam.Attempt, qs []exam.Question, ex *profile.Examiner) (Data, error) {
	if !a.Finalized() {
		return Data{}, fmt.Errorf("attempt %s: %w", a.ID, ErrNotFinalized)
	}
	d := Data{
		AttemptID:   a.ID,
		Examiner:    "N/A",
		Designation: "N/A",
		StoreArea:   "N/A",
		ExamType:    string(a.ExamType),
		DateTaken:   *a.CompletedAt,
		Score:       *a.Score,
		Total:       a.TotalQuestions,
	}
	if ex != nil {
		d.Examiner, d.Designation, d.StoreArea = orNA(ex.FullName), orNA(ex.Designation), orNA(ex.StoreArea)
	}
	for _, q := range qs {
		it := Item{Text: q.Text, Answer: AnswerText(q, a.Answers[q.ID])}
		if q.Type != exam.Essay {
			it.Correct = AnswerText(q, q.CorrectAnswer)
		}
		d.Items = append(d.Items, it)
	}
	return d, nil
}

var ErrNotFinalized = fmt.Errorf("attempt not finalized")

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// AnswerText renders a stored answer or key for display.
func AnswerText(q exam.Question, v interface{}) string {
	if v == nil {
		return "No answer"
	}
	switch q.Type {
	case exam.MultipleChoice:
		i, err := optionIndex(v)
		if err != nil || i < 0 || i >= len(q.Options) {
			return "Invalid option"
		}
		return q.Options[i]
	case exam.TrueFalse:
		if b, ok := v.(bool); ok {
			if b {
				return "True"
			}
			return "False"
		}
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "No answer"
	}
	return s
}

func optionIndex(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		return int(x), nil
	case string:
		return strconv.Atoi(x)
	}
	return 0, fmt.Errorf("not an index: %T", v)
}

const (
	margin      = 18.0 // mm
	lineHeight  = 7.0
	footerSpace = 20.0
)

// Render writes an A4 PDF.
func Render(w io.Writer, d Data) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s exam result", d.ExamType), true)
	pdf.SetCreator("examportal", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, footerSpace)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*margin

	pdf.SetFooterFunc(func() {
		pdf.SetDrawColor(0, 128, 0)
		pdf.Line(margin, pageH-footerSpace+4, pageW-margin, pageH-footerSpace+4)
		pdf.SetY(-14)
		pdf.SetFont("Times", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  -  page %d", FooterText, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Times", "B", 16)
	pdf.CellFormat(contentW, 10, "Exam Result", "", 1, "C", false, 0, "")
	pdf.SetDrawColor(0, 128, 0)
	pdf.Line(margin, pdf.GetY()+2, pageW-margin, pdf.GetY()+2)
	pdf.Ln(8)

	heading := func(s string) {
		pdf.SetFont("Times", "B", 14)
		pdf.CellFormat(contentW, 9, tr(s), "", 1, "L", false, 0, "")
		pdf.SetFont("Times", "", 12)
	}
	line := func(s string) { pdf.CellFormat(contentW, lineHeight, tr(s), "", 1, "L", false, 0, "") }

	heading("Exam Information")
	line("Examiner: " + d.Examiner)
	line("Designation: " + d.Designation)
	line("Store Area: " + d.StoreArea)
	line("Exam Type: " + d.ExamType)
	line("Date Taken: " + d.DateTaken.Format("2006-01-02"))
	pdf.Ln(6)

	heading("Score Summary")
	third := contentW / 3
	pdf.CellFormat(third, lineHeight, fmt.Sprintf("Score: %d/%d", d.Score, d.Total), "", 0, "L", false, 0, "")
	pdf.CellFormat(third, lineHeight, fmt.Sprintf("Percentage: %d%%", d.Percentage()), "", 0, "L", false, 0, "")
	result := "FAILED"
	pdf.SetTextColor(204, 0, 0)
	if d.Passed() {
		result = "PASSED"
		pdf.SetTextColor(0, 128, 0)
	}
	pdf.SetFont("Times", "B", 14)
	pdf.CellFormat(third, lineHeight, result, "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(8)

	heading("Question Review")
	for i, it := range d.Items {
		pdf.SetFont("Times", "B", 12)
		pdf.MultiCell(contentW, 6, tr(fmt.Sprintf("Question %d: %s", i+1, it.Text)), "", "L", false)
		pdf.SetFont("Times", "", 12)
		pdf.MultiCell(contentW, 6, tr("Your Answer: "+it.Answer), "", "L", false)
		if it.Correct != "" {
			pdf.MultiCell(contentW, 6, tr("Correct Answer: "+it.Correct), "", "L", false)
		}
		pdf.Ln(4)
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}
