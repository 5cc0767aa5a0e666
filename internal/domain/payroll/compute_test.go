package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeTotals(t *testing.T) {
	e := Earnings{BasicSalary: d(3000), HousingAllowance: d(500), Allowances: d(200)}
	ded := Deductions{Tax: d(300), ProvidentFund: d(150), Insurance: d(50)}

	totals := ComputeTotals(e, ded, Reimbursements{})

	assert.True(t, totals.GrossSalary.Equal(d(3700)))
	assert.True(t, totals.TotalEarnings.Equal(d(3700)))
	assert.True(t, totals.TotalDeductions.Equal(d(500)))
	assert.True(t, totals.TotalReimbursements.IsZero())
	assert.True(t, totals.NetSalary.Equal(d(3200)))
}

func TestComputeTotals_VariablePayNotInGross(t *testing.T) {
	e := Earnings{
		BasicSalary: d(1000),
		Bonuses:     d(200),
		Overtime:    Overtime{Hours: d(10), Rate: d(5), Amount: d(50)},
		Arrears:     d(25),
	}
	r := Reimbursements{Travel: d(40), Medical: d(10)}

	totals := ComputeTotals(e, Deductions{LateDeduction: d(75)}, r)

	assert.True(t, totals.GrossSalary.Equal(d(1000)))
	assert.True(t, totals.TotalEarnings.Equal(d(1275)))
	assert.True(t, totals.TotalReimbursements.Equal(d(50)))
	assert.True(t, totals.NetSalary.Equal(d(1250)))
}

func TestComputeTotals_NetFlooredAtZero(t *testing.T) {
	e := Earnings{BasicSalary: d(1000)}
	ded := Deductions{Loan: d(900), Advance: d(300)}

	totals := ComputeTotals(e, ded, Reimbursements{Food: d(100)})

	assert.True(t, totals.TotalDeductions.Equal(d(1200)))
	assert.True(t, totals.NetSalary.IsZero())
}

func TestComputeTotals_DecimalPrecision(t *testing.T) {
	e := Earnings{BasicSalary: decimal.RequireFromString("0.1"), Allowances: decimal.RequireFromString("0.2")}

	totals := ComputeTotals(e, Deductions{}, Reimbursements{})

	assert.Equal(t, "0.3", totals.GrossSalary.String())
}

func TestPayrollRecord_VerifyTotals(t *testing.T) {
	record := PayrollRecord{Earnings: Earnings{BasicSalary: d(3000)}, Deductions: Deductions{Tax: d(300)}}
	record.ApplyTotals()
	require.NoError(t, record.VerifyTotals())

	record.NetSalary = d(9999)
	assert.ErrorIs(t, record.VerifyTotals(), ErrTotalsMismatch)
}
