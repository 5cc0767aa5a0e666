package payslip

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

const contentTypeHTML = "text/html; charset=utf-8"

// Input is everything a slip shows. Amounts come from the stored record as-is.
type Input struct {
	Record   payroll.PayrollRecord
	Employee employee.Employee
}

type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Renderer turns a finished record into a document.
type Renderer interface {
	Render(ctx context.Context, in Input) (Document, error)
}

type htmlRenderer struct {
	templates  *template.Template
	printer    *message.Printer
	decimalSep string
}

// NewHTMLRenderer parses the embedded slip template. Amounts are formatted
// for tag.
func NewHTMLRenderer(tag language.Tag) (Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse payslip templates: %w", err)
	}

	printer := message.NewPrinter(tag)

	return &htmlRenderer{
		templates:  tmpl,
		printer:    printer,
		decimalSep: decimalSeparator(printer),
	}, nil
}

type lineItem struct {
	Label  string
	Amount string
}

type slipData struct {
	EmployeeName        string
	EmployeeCode        string
	PositionName        string
	PeriodLabel         string
	PeriodStart         string
	PeriodEnd           string
	WorkingDays         int
	DaysPresent         int
	Earnings            []lineItem
	TotalEarnings       string
	Deductions          []lineItem
	TotalDeductions     string
	Reimbursements      []lineItem
	TotalReimbursements string
	NetSalary           string
	PaymentStatus       string
	GeneratedAt         string
}

func (r *htmlRenderer) Render(ctx context.Context, in Input) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	rec := in.Record
	data := slipData{
		EmployeeName:    in.Employee.FullName,
		EmployeeCode:    in.Employee.EmployeeCode,
		PeriodLabel:     PeriodLabel(rec.PeriodMonth, rec.PeriodYear),
		PeriodStart:     rec.PeriodStart.Format("02 Jan 2006"),
		PeriodEnd:       rec.PeriodEnd.Format("02 Jan 2006"),
		WorkingDays:     rec.Attendance.WorkingDays,
		DaysPresent:     rec.Attendance.DaysPresent,
		TotalEarnings:   r.formatAmount(rec.TotalEarnings),
		TotalDeductions: r.formatAmount(rec.TotalDeductions),
		NetSalary:       r.formatAmount(rec.NetSalary),
		PaymentStatus:   string(rec.PaymentStatus),
		GeneratedAt:     time.Now().UTC().Format(time.RFC1123),
	}
	if in.Employee.PositionName != nil {
		data.PositionName = *in.Employee.PositionName
	}

	e := rec.Earnings
	data.Earnings = append([]lineItem{{Label: "Basic Salary", Amount: r.formatAmount(e.BasicSalary)}},
		r.nonZero(
			lineValue{"Housing Allowance", e.HousingAllowance},
			lineValue{"Allowances", e.Allowances},
			lineValue{"Bonuses", e.Bonuses},
			lineValue{"Incentives", e.Incentives},
			lineValue{"Overtime", e.Overtime.Amount},
			lineValue{"Arrears", e.Arrears},
			lineValue{"Other Earnings", e.Other},
		)...)

	d := rec.Deductions
	data.Deductions = r.nonZero(
		lineValue{"Tax", d.Tax},
		lineValue{"Provident Fund", d.ProvidentFund},
		lineValue{"Employee State Insurance", d.EmployeeStateInsurance},
		lineValue{"Professional Tax", d.ProfessionalTax},
		lineValue{"Insurance", d.Insurance},
		lineValue{"Loan", d.Loan},
		lineValue{"Advance", d.Advance},
		lineValue{"Late Deduction", d.LateDeduction},
		lineValue{"Other Deductions", d.Other},
	)

	if !rec.TotalReimbursements.IsZero() {
		rb := rec.Reimbursements
		data.Reimbursements = r.nonZero(
			lineValue{"Travel", rb.Travel},
			lineValue{"Medical", rb.Medical},
			lineValue{"Food", rb.Food},
			lineValue{"Communication", rb.Communication},
			lineValue{"Other Reimbursements", rb.Other},
		)
		data.TotalReimbursements = r.formatAmount(rec.TotalReimbursements)
	}

	var body bytes.Buffer
	if err := r.templates.ExecuteTemplate(&body, "payslip.html", data); err != nil {
		return Document{}, fmt.Errorf("failed to execute payslip template: %w", err)
	}

	return Document{
		FileName:    FileName(in.Employee.EmployeeCode, rec.PeriodMonth, rec.PeriodYear),
		ContentType: contentTypeHTML,
		Content:     body.Bytes(),
	}, nil
}

type lineValue struct {
	label  string
	amount decimal.Decimal
}

func (r *htmlRenderer) nonZero(values ...lineValue) []lineItem {
	var items []lineItem
	for _, v := range values {
		if v.amount.IsZero() {
			continue
		}
		items = append(items, lineItem{Label: v.label, Amount: r.formatAmount(v.amount)})
	}
	return items
}

// formatAmount groups the integer digits for the locale and keeps the exact
// cents of amount.
func (r *htmlRenderer) formatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	whole, cents, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")

	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = r.printer.Sprintf("%d", n)
	}
	if rounded.IsNegative() {
		whole = "-" + whole
	}
	return whole + r.decimalSep + cents
}

func decimalSeparator(p *message.Printer) string {
	half := p.Sprintf("%.1f", 0.5)
	return strings.TrimSuffix(strings.TrimPrefix(half, p.Sprintf("%d", 0)), p.Sprintf("%d", 5))
}

// PeriodLabel renders a period as "March 2024".
func PeriodLabel(month, year int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}

// FileName is the archive name of a slip, e.g. "payslip_E001_2024-03.html".
func FileName(employeeCode string, month, year int) string {
	return fmt.Sprintf("payslip_%s_%04d-%02d.html", employeeCode, year, month)
}
