package taxdoc

// Fields is the statically typed view of one document type's field set.
type Fields interface {
	DocumentType() DocumentType
}

type W2Fields struct {
	EmployeeName        string  `json:"employeeName"`
	EmployerName        string  `json:"employerName"`
	EmployerEIN         string  `json:"employerEIN"`
	EmployeeSSN         string  `json:"employeeSSN"`
	TaxYear             string  `json:"taxYear"`
	Wages               float64 `json:"wages"`
	FederalIncomeTax    float64 `json:"federalIncomeTax"`
	SocialSecurityWages float64 `json:"socialSecurityWages"`
	SocialSecurityTax   float64 `json:"socialSecurityTax"`
	MedicareWages       float64 `json:"medicareWages"`
	MedicareTax         float64 `json:"medicareTax"`
}

func (W2Fields) DocumentType() DocumentType { return W2 }

type Form1099Fields struct {
	FormVariant             string  `json:"formVariant"`
	PayerName               string  `json:"payerName"`
	RecipientName           string  `json:"recipientName"`
	PayerTIN                string  `json:"payerTIN"`
	TaxYear                 string  `json:"taxYear"`
	NonemployeeCompensation float64 `json:"nonemployeeCompensation"`
	InterestIncome          float64 `json:"interestIncome"`
	Dividends               float64 `json:"dividends"`
	FederalIncomeTax        float64 `json:"federalIncomeTax"`
}

func (Form1099Fields) DocumentType() DocumentType { return Form1099 }

type ReceiptFields struct {
	Merchant string   `json:"merchant"`
	Date     string   `json:"date"`
	Subtotal float64  `json:"subtotal"`
	Tax      float64  `json:"tax"`
	Total    float64  `json:"total"`
	Items    []string `json:"items"`
}

func (ReceiptFields) DocumentType() DocumentType { return Receipt }

type BankStatementFields struct {
	BankName         string   `json:"bankName"`
	AccountNumber    string   `json:"accountNumber"`
	StatementDate    string   `json:"statementDate"`
	BeginningBalance float64  `json:"beginningBalance"`
	EndingBalance    float64  `json:"endingBalance"`
	TotalDeposits    float64  `json:"totalDeposits"`
	TotalWithdrawals float64  `json:"totalWithdrawals"`
	Transactions     []string `json:"transactions"`
}

func (BankStatementFields) DocumentType() DocumentType { return BankStatement }

type InvoiceFields struct {
	InvoiceNumber string   `json:"invoiceNumber"`
	Vendor        string   `json:"vendor"`
	BillTo        string   `json:"billTo"`
	InvoiceDate   string   `json:"invoiceDate"`
	DueDate       string   `json:"dueDate"`
	Subtotal      float64  `json:"subtotal"`
	Tax           float64  `json:"tax"`
	Total         float64  `json:"total"`
	Items         []string `json:"items"`
}

func (InvoiceFields) DocumentType() DocumentType { return Invoice }

type GeneralFields struct {
	RawText      string `json:"rawText"`
	DetectedType string `json:"detectedType"`
}

func (GeneralFields) DocumentType() DocumentType { return General }

// Typed converts the set into the struct for t. Fields a custom rules file
// does not declare come back as their zero value.
func (fs FieldSet) Typed(t DocumentType) Fields {
	switch t {
	case W2:
		return W2Fields{
			EmployeeName:        fs.String("employeeName"),
			EmployerName:        fs.String("employerName"),
			EmployerEIN:         fs.String("employerEIN"),
			EmployeeSSN:         fs.String("employeeSSN"),
			TaxYear:             fs.String("taxYear"),
			Wages:               fs.Amount("wages"),
			FederalIncomeTax:    fs.Amount("federalIncomeTax"),
			SocialSecurityWages: fs.Amount("socialSecurityWages"),
			SocialSecurityTax:   fs.Amount("socialSecurityTax"),
			MedicareWages:       fs.Amount("medicareWages"),
			MedicareTax:         fs.Amount("medicareTax"),
		}
	case Form1099:
		return Form1099Fields{
			FormVariant:             fs.String("formVariant"),
			PayerName:               fs.String("payerName"),
			RecipientName:           fs.String("recipientName"),
			PayerTIN:                fs.String("payerTIN"),
			TaxYear:                 fs.String("taxYear"),
			NonemployeeCompensation: fs.Amount("nonemployeeCompensation"),
			InterestIncome:          fs.Amount("interestIncome"),
			Dividends:               fs.Amount("dividends"),
			FederalIncomeTax:        fs.Amount("federalIncomeTax"),
		}
	case Receipt:
		return ReceiptFields{
			Merchant: fs.String("merchant"),
			Date:     fs.String("date"),
			Subtotal: fs.Amount("subtotal"),
			Tax:      fs.Amount("tax"),
			Total:    fs.Amount("total"),
			Items:    fs.List("items"),
		}
	case BankStatement:
		return BankStatementFields{
			BankName:         fs.String("bankName"),
			AccountNumber:    fs.String("accountNumber"),
			StatementDate:    fs.String("statementDate"),
			BeginningBalance: fs.Amount("beginningBalance"),
			EndingBalance:    fs.Amount("endingBalance"),
			TotalDeposits:    fs.Amount("totalDeposits"),
			TotalWithdrawals: fs.Amount("totalWithdrawals"),
			Transactions:     fs.List("transactions"),
		}
	case Invoice:
		return InvoiceFields{
			InvoiceNumber: fs.String("invoiceNumber"),
			Vendor:        fs.String("vendor"),
			BillTo:        fs.String("billTo"),
			InvoiceDate:   fs.String("invoiceDate"),
			DueDate:       fs.String("dueDate"),
			Subtotal:      fs.Amount("subtotal"),
			Tax:           fs.Amount("tax"),
			Total:         fs.Amount("total"),
			Items:         fs.List("items"),
		}
	default:
		detected := fs.String("detectedType")
		if detected == "" {
			detected = string(General)
		}
		return GeneralFields{
			RawText:      fs.String("rawText"),
			DetectedType: detected,
		}
	}
}
