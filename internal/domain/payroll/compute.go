package payroll

import "github.com/shopspring/decimal"

// GrossSalary is the fixed-component gross: basic + housing + allowances.
// Bonuses, overtime and other variable pay are not part of it.
func GrossSalary(e Earnings) decimal.Decimal {
	return e.BasicSalary.Add(e.HousingAllowance).Add(e.Allowances)
}

func (e Earnings) Total() decimal.Decimal {
	return decimal.Sum(
		e.BasicSalary,
		e.HousingAllowance,
		e.Allowances,
		e.Bonuses,
		e.Incentives,
		e.Overtime.Amount,
		e.Arrears,
		e.Other,
	)
}

func (d Deductions) Total() decimal.Decimal {
	return decimal.Sum(
		d.Tax,
		d.ProvidentFund,
		d.EmployeeStateInsurance,
		d.ProfessionalTax,
		d.Insurance,
		d.Loan,
		d.Advance,
		d.LateDeduction,
		d.Other,
	)
}

func (r Reimbursements) Total() decimal.Decimal {
	return decimal.Sum(r.Travel, r.Medical, r.Food, r.Communication, r.Other)
}

// ComputeTotals derives all totals of a record. Net salary is floored at zero.
func ComputeTotals(e Earnings, d Deductions, r Reimbursements) Totals {
	earnings := e.Total()
	deductions := d.Total()
	reimbursements := r.Total()

	net := earnings.Sub(deductions).Add(reimbursements)
	if net.IsNegative() {
		net = decimal.Zero
	}

	return Totals{
		GrossSalary:         GrossSalary(e),
		TotalEarnings:       earnings,
		TotalDeductions:     deductions,
		TotalReimbursements: reimbursements,
		NetSalary:           net,
	}
}
