package model

// LoanOption is a static catalog entry. Amounts are in KES (smallest unit).
type LoanOption struct {
	Amount int64 `json:"amount"`
	Fee    int64 `json:"fee"`
}

// QuotedOption is a catalog entry with its derived repayment details. Derived
// fields are computed per request and never stored.
type QuotedOption struct {
	Amount          int64  `json:"amount"`
	Fee             int64  `json:"fee"`
	Interest        int64  `json:"interest"`
	RepaymentPeriod string `json:"repaymentPeriod"`
	APR             string `json:"apr"`
	TotalRepayment  int64  `json:"totalRepayment"`
}

// LoanTerms describes the catalog-wide lending terms shown to the client.
type LoanTerms struct {
	InterestRate    string `json:"interestRate"`
	ProcessingFee   string `json:"processingFee"`
	RepaymentPeriod string `json:"repaymentPeriod"`
	Eligibility     string `json:"eligibility"`
}

const (
	repaymentPeriod = "2 months"
	annualRate      = "60%"
)

// loanCatalog is the fixed fee table offered by the product.
var loanCatalog = []LoanOption{
	{Amount: 5500, Fee: 100},
	{Amount: 6800, Fee: 130},
	{Amount: 7800, Fee: 170},
	{Amount: 9800, Fee: 190},
	{Amount: 11200, Fee: 230},
	{Amount: 16800, Fee: 250},
	{Amount: 21200, Fee: 270},
	{Amount: 25600, Fee: 400},
	{Amount: 30000, Fee: 470},
	{Amount: 35400, Fee: 590},
	{Amount: 39800, Fee: 730},
	{Amount: 44200, Fee: 1010},
	{Amount: 48600, Fee: 1600},
	{Amount: 60600, Fee: 2050},
}

// Quote derives the repayment details for one option.
func (o LoanOption) Quote() QuotedOption {
	return QuotedOption{
		Amount:          o.Amount,
		Fee:             o.Fee,
		Interest:        InterestOn(o.Amount),
		RepaymentPeriod: repaymentPeriod,
		APR:             annualRate,
		TotalRepayment:  TotalRepaymentOn(o.Amount, o.Fee),
	}
}

// LoanOptions returns the quoted catalog. The slice is freshly built on every
// call so callers cannot mutate the table.
func LoanOptions() []QuotedOption {
	out := make([]QuotedOption, 0, len(loanCatalog))
	for _, o := range loanCatalog {
		out = append(out, o.Quote())
	}
	return out
}

// Terms returns the lending terms attached to the catalog response.
func Terms() LoanTerms {
	return LoanTerms{
		InterestRate:    "10% per 2 months",
		ProcessingFee:   "Variable based on amount",
		RepaymentPeriod: repaymentPeriod,
		Eligibility:     "Kenyan citizens aged 18-35 with valid ID and M-Pesa account",
	}
}
