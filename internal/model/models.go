package model

import "time"

// Client is a customer the freelancer bills.
type Client struct {
	ID    string  `json:"id" yaml:"id"`
	Name  string  `json:"name" yaml:"name"`
	Email *string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Project belongs to a Client. ClientID is not enforced as a foreign key:
// a project may outlive its client.
type Project struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	ClientID string   `json:"clientId" yaml:"clientId"`
	Rate     *float64 `json:"rate,omitempty" yaml:"rate,omitempty"` // hourly rate
}

// TimeEntry is a tracked span of work on a Project. End is nil while the
// timer is still running.
type TimeEntry struct {
	ID        string     `json:"id" yaml:"id"`
	ProjectID string     `json:"projectId" yaml:"projectId"`
	Start     time.Time  `json:"start" yaml:"start"`
	End       *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Invoice is an issued bill. ClientName is copied from the client at issue
// time and is not kept in sync afterwards.
type Invoice struct {
	ID         string  `json:"id" yaml:"id"`
	ClientName string  `json:"clientName" yaml:"clientName"`
	IssueDate  string  `json:"issueDate" yaml:"issueDate"` // YYYY-MM-DD
	DueDate    string  `json:"dueDate" yaml:"dueDate"`     // YYYY-MM-DD
	Amount     float64 `json:"amount" yaml:"amount"`
	Status     string  `json:"status" yaml:"status"`
	Currency   string  `json:"currency" yaml:"currency"`
}

// Expense is a cost recorded against a Project.
type Expense struct {
	ID          string  `json:"id" yaml:"id"`
	ProjectID   string  `json:"projectId" yaml:"projectId"`
	Description string  `json:"description" yaml:"description"`
	Amount      float64 `json:"amount" yaml:"amount"`
	Date        string  `json:"date" yaml:"date"` // YYYY-MM-DD
	IsBilled    bool    `json:"isBilled" yaml:"isBilled"`
	IsBillable  bool    `json:"isBillable" yaml:"isBillable"`
}

// RecurringInvoice is a template that produces an Invoice every period.
type RecurringInvoice struct {
	ID          string  `json:"id" yaml:"id"`
	ClientName  string  `json:"clientName" yaml:"clientName"`
	Frequency   string  `json:"frequency" yaml:"frequency"`
	NextDueDate string  `json:"nextDueDate" yaml:"nextDueDate"` // YYYY-MM-DD
	Amount      float64 `json:"amount" yaml:"amount"`
	Currency    string  `json:"currency" yaml:"currency"`
	Status      string  `json:"status" yaml:"status"`
}

// UserProfile holds the freelancer's own company details (singleton).
type UserProfile struct {
	CompanyName    string `json:"companyName" yaml:"companyName"`
	CompanyEmail   string `json:"companyEmail" yaml:"companyEmail"`
	CompanyAddress string `json:"companyAddress" yaml:"companyAddress"`
	Logo           []byte `json:"logo,omitempty" yaml:"logo,omitempty"`
}

// TaxSettings is a singleton. Rates are percentages.
type TaxSettings struct {
	Rate             float64 `json:"rate" yaml:"rate"`
	InternalCostRate float64 `json:"internalCostRate" yaml:"internalCostRate"`
}

// CurrencySettings is a singleton.
type CurrencySettings struct {
	DefaultCurrency string `json:"default" yaml:"default"`
	InvoiceLanguage string `json:"invoiceLanguage" yaml:"invoiceLanguage"`
}

// Aggregate is the whole dataset in memory: the unit of bulk load and save.
// Trial information is not part of it.
type Aggregate struct {
	Clients           []Client           `json:"clients" yaml:"clients"`
	Projects          []Project          `json:"projects" yaml:"projects"`
	TimeEntries       []TimeEntry        `json:"timeEntries" yaml:"timeEntries"`
	Invoices          []Invoice          `json:"invoices" yaml:"invoices"`
	Expenses          []Expense          `json:"expenses" yaml:"expenses"`
	RecurringInvoices []RecurringInvoice `json:"recurringInvoices" yaml:"recurringInvoices"`
	UserProfile       UserProfile        `json:"userProfile" yaml:"userProfile"`
	TaxSettings       TaxSettings        `json:"taxSettings" yaml:"taxSettings"`
	CurrencySettings  CurrencySettings   `json:"currencySettings" yaml:"currencySettings"`
}
