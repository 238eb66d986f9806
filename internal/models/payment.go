package models

type PaymentProvider string

const (
	ProviderChapa  PaymentProvider = "chapa"
	ProviderPayPal PaymentProvider = "paypal"
)

type InitializePaymentRequest struct {
	Provider    PaymentProvider `json:"provider"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	TxRef       string          `json:"txRef"`
	OrderID     string          `json:"orderId"`
	ReturnURL   string          `json:"returnUrl"`
	CallbackURL string          `json:"callbackUrl"`
}

type InitializePaymentResponse struct {
	CheckoutURL string          `json:"checkoutUrl"`
	TxRef       string          `json:"txRef"`
	Provider    PaymentProvider `json:"provider"`
}

type VerifyPaymentRequest struct {
	Provider PaymentProvider `json:"provider"`
	TxRef    string          `json:"txRef"`
}

type VerifyPaymentResponse struct {
	Status        string          `json:"status"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	TxRef         string          `json:"txRef"`
	Provider      PaymentProvider `json:"provider"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
}
