package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so messages line up with the form fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages are the form messages shown by the app, keyed by field and tag.
// A key without a tag applies to every tag of the field.
var fieldMessages = map[string]string{
	"description":       "A descrição é obrigatória",
	"amount":            "O valor é obrigatório",
	"categoryName":      "A categoria é obrigatória",
	"date":              "A data é obrigatória",
	"type":              "O tipo deve ser receita ou despesa",
	"name":              "O nome é obrigatório",
	"email":             "Email inválido",
	"email.required":    "O email é obrigatório",
	"password":          "A senha deve ter no mínimo 6 caracteres",
	"password.required": "A senha é obrigatória",
	"photoURL":          "URL da foto inválida",
	"idToken":           "Token do Google é obrigatório",
	"refreshToken":      "Token de atualização é obrigatório",
	"count":             "A quantidade deve estar entre 0 e 500",
	"months":            "O número de meses deve estar entre 0 e 36",
}

// Validate checks the validate struct tags of s and returns the first
// failure as an *ErrValidation carrying the user facing message.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ErrValidation{Field: "body", Message: "Requisição inválida"}
	}

	fe := verrs[0]
	field := fe.Field()
	if msg, ok := fieldMessages[field+"."+fe.Tag()]; ok {
		return &ErrValidation{Field: field, Message: msg}
	}
	if msg, ok := fieldMessages[field]; ok {
		return &ErrValidation{Field: field, Message: msg}
	}
	return &ErrValidation{Field: field, Message: "Campo inválido: " + field}
}

// Resolve validates a transaction form and looks its category up in the catalog.
func (r *TransactionRequest) Resolve() (Category, error) {
	r.Normalize()
	if err := Validate(r); err != nil {
		return Category{}, err
	}
	if !r.Amount.Present {
		return Category{}, &ErrValidation{Field: "amount", Message: fieldMessages["amount"]}
	}
	if !r.Amount.Value.IsPositive() {
		return Category{}, &ErrValidation{Field: "amount", Message: "O valor deve ser maior que zero"}
	}
	cat, ok := FindCategory(r.CategoryName)
	if !ok {
		return Category{}, &ErrValidation{Field: "categoryName", Message: "Categoria inválida"}
	}
	if cat.Type != r.Type {
		return Category{}, &ErrValidation{Field: "categoryName", Message: "Categoria não corresponde ao tipo da transação"}
	}
	return cat, nil
}

// ToTransaction builds the transaction described by a resolved form.
func (r *TransactionRequest) ToTransaction(id string, cat Category) Transaction {
	return Transaction{
		ID:          id,
		Description: r.Description,
		Type:        r.Type,
		Amount:      r.Amount.Value,
		Date:        r.Date.Truncate(time.Millisecond),
		Category:    cat.Ref(),
		PhotoURL:    r.PhotoURL,
	}
}
