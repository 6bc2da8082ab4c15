package checkout

import (
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-loja/internal/shipping"
)

// Address is the delivery and contact form submitted at checkout.
type Address struct {
	ReceiverName string  `json:"receiverName" validate:"required,min=2,max=120"`
	CPF          string  `json:"cpf" validate:"required,cpf"`
	Phone        string  `json:"phone" validate:"required,br_phone"`
	PostalCode   string  `json:"postalCode" validate:"required,cep"`
	Street       string  `json:"street" validate:"required"`
	Number       string  `json:"number" validate:"required"`
	Complement   *string `json:"complement"`
	District     string  `json:"district" validate:"required"`
	City         string  `json:"city" validate:"required"`
	State        string  `json:"state" validate:"required,len=2,alpha"`
}

// Card carries inline card fields for a one-off payment.
type Card struct {
	HolderName string `json:"holderName" validate:"required,min=2"`
	Number     string `json:"number" validate:"required,numeric,min=13,max=19"`
	ExpMonth   int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear    int    `json:"expYear" validate:"required,min=2000"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// Payment selects exactly one settlement method: a saved method id, inline
// card fields, or boleto.
type Payment struct {
	SavedMethodID *string `json:"savedMethodId" validate:"omitempty,uuid"`
	Card          *Card   `json:"card"`
	Boleto        bool    `json:"boleto"`
}

// Input is the full checkout submission.
type Input struct {
	Address      Address       `json:"address"`
	Payment      Payment       `json:"payment"`
	ShippingTier shipping.Tier `json:"shippingTier" validate:"omitempty,oneof=standard express"`
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NewValidator builds the checkout form validator with the Brazilian field
// rules registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return len(digitsOf(fl.Field().String())) == 11
	})
	_ = v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
		n := len(digitsOf(fl.Field().String()))
		return n == 10 || n == 11
	})
	_ = v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		_, err := shipping.NormalizeCEP(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(Payment)
		selected := 0
		if p.SavedMethodID != nil && strings.TrimSpace(*p.SavedMethodID) != "" {
			selected++
		}
		if p.Card != nil {
			selected++
		}
		if p.Boleto {
			selected++
		}
		if selected != 1 {
			sl.ReportError(p.SavedMethodID, "payment", "Payment", "payment_selection", "")
		}
	}, Payment{})

	return v
}

// FieldErrors flattens validator output into a field -> tag map suitable for
// an error response details payload.
func FieldErrors(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out[field] = fe.Tag()
	}
	return out
}
