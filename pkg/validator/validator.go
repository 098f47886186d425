package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	FailedField string
	Tag         string
	Value       string
}

// QuantityScale is the number of decimal places the quantity columns keep
const QuantityScale = 6

// quantities must fit decimal(20,6): at most 14 integer digits
var maxQuantity = decimal.New(1, 20-QuantityScale)

var validate = validator.New()

func init() {
	// Let numeric tags (gt, gte, lte ...) apply to decimal quantities
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// qty rejects quantities the database would round or overflow
	if err := validate.RegisterValidation("qty", validQuantity); err != nil {
		panic(err)
	}

	// Report JSON names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FitsQuantity reports whether d is stored without rounding or overflow
func FitsQuantity(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(QuantityScale)) && d.Abs().LessThan(maxQuantity)
}

func validQuantity(fl validator.FieldLevel) bool {
	d, ok := decimalField(fl)
	return ok && FitsQuantity(d)
}

// decimalField reads the decimal itself; tags only see its float64 form
func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	if parent.Kind() != reflect.Struct {
		return decimal.Decimal{}, false
	}
	field := parent.FieldByName(fl.StructFieldName())
	if !field.IsValid() || !field.CanInterface() {
		return decimal.Decimal{}, false
	}
	d, ok := field.Interface().(decimal.Decimal)
	return d, ok
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var errors []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []*ErrorResponse{{FailedField: "", Tag: "invalid", Value: err.Error()}}
		}
		for _, err := range validationErrs {
			var element ErrorResponse
			element.FailedField = err.Namespace()
			element.Tag = err.Tag()
			element.Value = err.Param()
			errors = append(errors, &element)
		}
	}
	return errors
}

// Message renders the first failure in the form handlers return to clients
func Message(errs []*ErrorResponse) string {
	if len(errs) == 0 {
		return ""
	}
	first := errs[0]
	field := first.FailedField
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if first.Value != "" {
		return fmt.Sprintf("field '%s' failed on '%s=%s'", field, first.Tag, first.Value)
	}
	return fmt.Sprintf("field '%s' failed on '%s'", field, first.Tag)
}
