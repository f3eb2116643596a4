package handler

import (
	"errors"
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"backoffice/internal/billing"
)

// RegisterValidators teaches gin's validator about decimal fields:
//
//	dgte0    the value is >= 0
//	tvarate  the value is one of the offered TVA rates
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	v.RegisterCustomTypeFunc(decimalString, decimal.Decimal{})
	if err := v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		return ok && !d.IsNegative()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("tvarate", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		return ok && billing.IsAllowedTVARate(d)
	})
}

// decimalString hands decimals to the validator as their string form.
func decimalString(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
