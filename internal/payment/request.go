package payment

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Request is the inbound POST /payments body. Amount is a pointer so a missing
// field can be told apart from a literal zero.
type Request struct {
	CorrelationID string   `json:"correlationId"`
	Amount        *float64 `json:"amount"`
}

// Validate checks that both fields are present. The returned message is
// surfaced to the client verbatim, so field order matters: correlationId is
// reported before amount.
func (r Request) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.CorrelationID,
			validation.Required.Error("Invalid params. Missing 'correlationId'"),
		),
		validation.Field(&r.Amount,
			validation.NotNil.Error("Invalid params. Missing 'amount'"),
		),
	)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validation.Errors)
	if !ok {
		return err
	}
	if e, found := verrs["correlationId"]; found {
		return e
	}
	if e, found := verrs["amount"]; found {
		return e
	}
	return err
}
