package employee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSalaryConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  SalaryConfig
		want error
	}{
		{"valid", SalaryConfig{Basic: decimal.NewFromInt(3000), HousingAllowance: decimal.NewFromInt(500)}, nil},
		{"zero basic", SalaryConfig{}, ErrNoBaseSalary},
		{"negative basic", SalaryConfig{Basic: decimal.NewFromInt(-1)}, ErrNoBaseSalary},
		{"negative allowance", SalaryConfig{Basic: decimal.NewFromInt(10), Allowances: decimal.NewFromInt(-5)}, ErrInvalidSalaryConfig},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestDeductionConfig_Validate(t *testing.T) {
	assert.NoError(t, DeductionConfig{Tax: decimal.NewFromInt(300)}.Validate())
	assert.ErrorIs(t, DeductionConfig{Other: decimal.NewFromInt(-1)}.Validate(), ErrInvalidDeductionConfig)
}

func TestEmploymentStatus_IsValid(t *testing.T) {
	assert.True(t, EmploymentStatusTerminated.IsValid())
	assert.True(t, EmploymentStatusOnLeave.IsValid())
	assert.False(t, EmploymentStatus("resigned").IsValid())
}
