package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Disbursement statuses reported by the gateway.
const (
	StatusSuccess              = "SUCCESS"
	StatusFailed               = "FAILED"
	StatusReversed             = "REVERSED"
	StatusPending              = "PENDING"
	StatusPendingAuthorization = "PENDING_AUTHORIZATION"
)

// envelope wraps every gateway response.
type envelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseCode      string          `json:"responseCode"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type loginBody struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type AccountDetails struct {
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	BankCode      string `json:"bankCode"`
}

type TransferRequest struct {
	Amount                   decimal.Decimal `json:"amount"`
	Reference                string          `json:"reference"`
	Narration                string          `json:"narration"`
	DestinationBankCode      string          `json:"destinationBankCode"`
	DestinationAccountNumber string          `json:"destinationAccountNumber"`
	Currency                 string          `json:"currency"`
	SourceAccountNumber      string          `json:"sourceAccountNumber"`
}

type TransferResponse struct {
	Amount                   decimal.Decimal `json:"amount"`
	Reference                string          `json:"reference"`
	Status                   string          `json:"status"`
	DateCreated              string          `json:"dateCreated"`
	TotalFee                 decimal.Decimal `json:"totalFee"`
	DestinationAccountName   string          `json:"destinationAccountName"`
	DestinationBankName      string          `json:"destinationBankName"`
	DestinationAccountNumber string          `json:"destinationAccountNumber"`
	DestinationBankCode      string          `json:"destinationBankCode"`
}

type PaymentRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	CustomerName       string          `json:"customerName"`
	CustomerEmail      string          `json:"customerEmail"`
	PaymentReference   string          `json:"paymentReference"`
	PaymentDescription string          `json:"paymentDescription"`
	CurrencyCode       string          `json:"currencyCode"`
	ContractCode       string          `json:"contractCode"`
	RedirectURL        string          `json:"redirectUrl,omitempty"`
	PaymentMethods     []string        `json:"paymentMethods,omitempty"`
}

type PaymentResponse struct {
	TransactionReference string `json:"transactionReference"`
	PaymentReference     string `json:"paymentReference"`
	CheckoutURL          string `json:"checkoutUrl"`
}

type ReservedAccountRequest struct {
	AccountReference string `json:"accountReference"`
	AccountName      string `json:"accountName"`
	CurrencyCode     string `json:"currencyCode"`
	ContractCode     string `json:"contractCode"`
	CustomerEmail    string `json:"customerEmail"`
	CustomerName     string `json:"customerName"`
}

type ReservedAccountResponse struct {
	AccountReference string `json:"accountReference"`
	AccountName      string `json:"accountName"`
	AccountNumber    string `json:"accountNumber"`
	BankName         string `json:"bankName"`
	BankCode         string `json:"bankCode"`
	Status           string `json:"status"`
	// Newer contracts return one account per partner bank instead of the flat fields.
	Accounts []struct {
		BankCode      string `json:"bankCode"`
		BankName      string `json:"bankName"`
		AccountNumber string `json:"accountNumber"`
		AccountName   string `json:"accountName"`
	} `json:"accounts"`
}

// Primary returns the account to bind to the wallet.
func (r *ReservedAccountResponse) Primary() (number, bank, name string) {
	if r.AccountNumber != "" {
		return r.AccountNumber, r.BankName, r.AccountName
	}
	if len(r.Accounts) > 0 {
		a := r.Accounts[0]
		return a.AccountNumber, a.BankName, a.AccountName
	}
	return "", "", ""
}
