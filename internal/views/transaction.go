package views

import (
	"fmt"
	"strconv"
)

// RawTransaction is one element of an uploaded batch, exactly as JSON-decoded.
// Type coercion into Transaction is part of validation, not a precondition.
type RawTransaction map[string]any

// Transaction is the typed shape of a transaction record. The validate tags
// carry the business rules; type/parseability checks for transactionId and
// transactionDate happen during coercion, which is why those two carry no tag.
//
// Quantity admits single-unit purchases: the enforced rule is >0, <=5.
type Transaction struct {
	TransactionID   string  `json:"transactionId"`
	ProductID       string  `json:"productId" validate:"min=1"`
	ProductName     string  `json:"productName" validate:"min=1"`
	ProductCategory string  `json:"productCategory" validate:"min=1"`
	ProductPrice    float64 `json:"productPrice" validate:"gt=50,lte=5000"`
	ProductQuantity int     `json:"productQuantity" validate:"gt=0,lte=5"`
	ProductDiscount float64 `json:"productDiscount" validate:"gt=0,lte=0.3"`
	ProductBrand    string  `json:"productBrand" validate:"oneof=Apple Samsung Xiaomi Microsoft Sony LG Dell Lenovo"`
	Currency        string  `json:"currency" validate:"oneof=BRL USD EUR"`
	CustomerID      string  `json:"customerId" validate:"min=1"`
	TransactionDate string  `json:"transactionDate"`
	PaymentMethod   string  `json:"paymentMethod" validate:"oneof='credit card' 'debit card' PIX cash"`
}

// Violation is a single field-level rule failure. Kind follows the original
// error vocabulary (greater_than, literal_error, uuid_parsing, ...).
type Violation struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Input   any    `json:"input"`
}

// String renders the violation in the fixed rejected-record error format.
func (v Violation) String() string {
	return fmt.Sprintf("%s occurred in the %s field. %s but got %v.", v.Kind, v.Field, v.Message, v.Input)
}

// FlattenRecord converts a raw record into the flat field-to-string mapping
// stored in a partition. Unknown fields are carried along untouched.
func FlattenRecord(raw RawTransaction) map[string]string {
	out := make(map[string]string, len(raw))
	for field, value := range raw {
		out[field] = FormatValue(value)
	}
	return out
}

// FormatValue renders a JSON-decoded value as its stored string form.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
