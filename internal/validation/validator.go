package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ecomstream/transaction-processor/internal/views"
)

// Violation kinds, matching the error vocabulary the rejected-record format
// was built around.
const (
	KindMissing          = "missing"
	KindStringType       = "string_type"
	KindStringTooShort   = "string_too_short"
	KindIntParsing       = "int_parsing"
	KindFloatParsing     = "float_parsing"
	KindUUIDParsing      = "uuid_parsing"
	KindDatetimeParsing  = "datetime_parsing"
	KindGreaterThan      = "greater_than"
	KindLessThanEqual    = "less_than_equal"
	KindLiteralError     = "literal_error"
	KindValueError       = "value_error"
	KindCalculationError = "calculation_error"
)

// dateLayouts are the accepted transactionDate encodings. Producers emit
// either RFC3339 or the space-separated form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Validator checks raw transaction records at two strictness levels:
// CheckShape verifies types and parseability only, Validate adds the numeric
// ranges and closed-set memberships. Both are exhaustive: every failing field
// is reported, not just the first.
type Validator struct {
	rules *validator.Validate
}

func New() *Validator {
	v := validator.New()
	// Report violations under the wire field names, not the Go ones.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{rules: v}
}

// CheckShape coerces a raw record into its typed form, reporting type and
// parse failures. Range and enum rules are not applied.
func (v *Validator) CheckShape(raw views.RawTransaction) (views.Transaction, []views.Violation) {
	c := newCoercion(raw)
	return c.run(), c.violations
}

// Validate runs the full business-rule check: shape coercion first, then the
// range/enum rules on the coerced record. A field that already failed
// coercion is not re-reported by the rule pass.
func (v *Validator) Validate(raw views.RawTransaction) (views.Transaction, []views.Violation) {
	c := newCoercion(raw)
	txn := c.run()
	violations := c.violations

	err := v.rules.Struct(&txn)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			violations = append(violations, views.Violation{
				Field:   "record",
				Kind:    KindValueError,
				Message: "Input is not a valid transaction record",
				Input:   fmt.Sprintf("%v", raw),
			})
			return txn, violations
		}
		for _, fe := range fieldErrs {
			if c.failed[fe.Field()] {
				continue
			}
			violations = append(violations, ruleViolation(fe, raw))
		}
	}
	return txn, violations
}

// ruleViolation maps a validator field error to a Violation, keeping the
// offending raw input rather than the coerced value.
func ruleViolation(fe validator.FieldError, raw views.RawTransaction) views.Violation {
	input := raw[fe.Field()]
	switch fe.Tag() {
	case "gt":
		return views.Violation{
			Field:   fe.Field(),
			Kind:    KindGreaterThan,
			Message: fmt.Sprintf("Input should be greater than %s", fe.Param()),
			Input:   input,
		}
	case "lte":
		return views.Violation{
			Field:   fe.Field(),
			Kind:    KindLessThanEqual,
			Message: fmt.Sprintf("Input should be less than or equal to %s", fe.Param()),
			Input:   input,
		}
	case "min":
		return views.Violation{
			Field:   fe.Field(),
			Kind:    KindStringTooShort,
			Message: fmt.Sprintf("String should have at least %s character", fe.Param()),
			Input:   input,
		}
	case "oneof":
		return views.Violation{
			Field:   fe.Field(),
			Kind:    KindLiteralError,
			Message: oneOfMessage(fe.Param()),
			Input:   input,
		}
	default:
		return views.Violation{
			Field:   fe.Field(),
			Kind:    KindValueError,
			Message: fmt.Sprintf("Input failed the %s rule", fe.Tag()),
			Input:   input,
		}
	}
}

// oneOfMessage renders "Input should be 'A', 'B' or 'C'" from a oneof tag
// param, honoring single-quoted members that contain spaces.
func oneOfMessage(param string) string {
	choices := splitOneOfParam(param)
	quoted := make([]string, len(choices))
	for i, choice := range choices {
		quoted[i] = "'" + choice + "'"
	}
	if len(quoted) == 1 {
		return "Input should be " + quoted[0]
	}
	return fmt.Sprintf("Input should be %s or %s",
		strings.Join(quoted[:len(quoted)-1], ", "), quoted[len(quoted)-1])
}

func splitOneOfParam(param string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for _, r := range param {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// coercion converts a JSON-decoded record into the typed Transaction,
// collecting a violation per failing field.
type coercion struct {
	raw        views.RawTransaction
	violations []views.Violation
	failed     map[string]bool
}

func newCoercion(raw views.RawTransaction) *coercion {
	return &coercion{raw: raw, failed: make(map[string]bool)}
}

func (c *coercion) run() views.Transaction {
	var t views.Transaction
	t.TransactionID = c.uuidField("transactionId")
	t.ProductID = c.stringField("productId")
	t.ProductName = c.stringField("productName")
	t.ProductCategory = c.stringField("productCategory")
	t.ProductPrice = c.floatField("productPrice")
	t.ProductQuantity = c.intField("productQuantity")
	t.ProductDiscount = c.floatField("productDiscount")
	t.ProductBrand = c.stringField("productBrand")
	t.Currency = c.stringField("currency")
	t.CustomerID = c.stringField("customerId")
	t.TransactionDate = c.datetimeField("transactionDate")
	t.PaymentMethod = c.stringField("paymentMethod")
	return t
}

func (c *coercion) add(field, kind, message string, input any) {
	c.violations = append(c.violations, views.Violation{
		Field:   field,
		Kind:    kind,
		Message: message,
		Input:   input,
	})
	c.failed[field] = true
}

func (c *coercion) stringField(name string) string {
	v, ok := c.raw[name]
	if !ok || v == nil {
		c.add(name, KindMissing, "Field required", v)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.add(name, KindStringType, "Input should be a valid string", v)
		return ""
	}
	return s
}

func (c *coercion) floatField(name string) float64 {
	v, ok := c.raw[name]
	if !ok || v == nil {
		c.add(name, KindMissing, "Field required", v)
		return 0
	}
	switch val := v.(type) {
	case float64:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			c.add(name, KindFloatParsing, "Input should be a valid number", v)
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			c.add(name, KindFloatParsing, "Input should be a valid number", v)
			return 0
		}
		return f
	default:
		c.add(name, KindFloatParsing, "Input should be a valid number", v)
		return 0
	}
}

func (c *coercion) intField(name string) int {
	v, ok := c.raw[name]
	if !ok || v == nil {
		c.add(name, KindMissing, "Field required", v)
		return 0
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			c.add(name, KindIntParsing, "Input should be a valid integer", v)
			return 0
		}
		return int(val)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			c.add(name, KindIntParsing, "Input should be a valid integer", v)
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			c.add(name, KindIntParsing, "Input should be a valid integer", v)
			return 0
		}
		return n
	default:
		c.add(name, KindIntParsing, "Input should be a valid integer", v)
		return 0
	}
}

func (c *coercion) uuidField(name string) string {
	s := c.stringField(name)
	if c.failed[name] {
		return s
	}
	if _, err := uuid.Parse(s); err != nil {
		c.add(name, KindUUIDParsing, "Input should be a valid UUID", c.raw[name])
	}
	return s
}

func (c *coercion) datetimeField(name string) string {
	s := c.stringField(name)
	if c.failed[name] {
		return s
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s
		}
	}
	c.add(name, KindDatetimeParsing, "Input should be a valid datetime", c.raw[name])
	return s
}
