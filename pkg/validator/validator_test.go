package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

type portion struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,qty"`
}

type sample struct {
	Reason   string          `json:"reason" validate:"required,min=10"`
	Quantity decimal.Decimal `json:"newQuantity" validate:"gte=0,qty"`
	Portions []portion       `json:"portions" validate:"required,min=1,dive"`
}

func TestValidateStruct(t *testing.T) {
	valid := sample{
		Reason:   "recount after audit",
		Quantity: decimal.NewFromInt(0),
		Portions: []portion{{Quantity: decimal.RequireFromString("0.5")}},
	}
	if errs := ValidateStruct(&valid); len(errs) != 0 {
		t.Fatalf("Expected no errors, got %s", Message(errs))
	}

	testCases := []struct {
		name      string
		mutate    func(s *sample)
		wantField string
		wantTag   string
	}{
		{"short reason", func(s *sample) { s.Reason = "short" }, "sample.reason", "min"},
		{"negative quantity", func(s *sample) { s.Quantity = decimal.NewFromInt(-1) }, "sample.newQuantity", "gte"},
		{"no portions", func(s *sample) { s.Portions = nil }, "sample.portions", "required"},
		{"zero portion", func(s *sample) { s.Portions = []portion{{Quantity: decimal.Zero}} }, "sample.portions[0].quantity", "gt"},
		{"portion below scale", func(s *sample) { s.Portions = []portion{{Quantity: decimal.RequireFromString("0.0000001")}} }, "sample.portions[0].quantity", "qty"},
		{"seven decimals", func(s *sample) { s.Quantity = decimal.RequireFromString("33.3333333") }, "sample.newQuantity", "qty"},
		{"too many digits", func(s *sample) { s.Quantity = decimal.New(1, 14) }, "sample.newQuantity", "qty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			s.Portions = append([]portion(nil), valid.Portions...)
			tc.mutate(&s)
			errs := ValidateStruct(&s)
			if len(errs) == 0 {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
			if errs[0].FailedField != tc.wantField || errs[0].Tag != tc.wantTag {
				t.Errorf("Expected %s/%s, got %s/%s", tc.wantField, tc.wantTag, errs[0].FailedField, errs[0].Tag)
			}
		})
	}
}

func TestFitsQuantity(t *testing.T) {
	testCases := []struct {
		value string
		want  bool
	}{
		{"0", true},
		{"33.333333", true},
		{"33.3333330", true},
		{"33.3333333", false},
		{"0.0000001", false},
		{"99999999999999.999999", true},
		{"100000000000000", false},
		{"-12.5", true},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			if got := FitsQuantity(decimal.RequireFromString(tc.value)); got != tc.want {
				t.Errorf("Expected FitsQuantity(%s) = %v, got %v", tc.value, tc.want, got)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	msg := Message([]*ErrorResponse{{FailedField: "AdjustQuantityRequest.reason", Tag: "min", Value: "10"}})
	if msg != "field 'reason' failed on 'min=10'" {
		t.Errorf("Unexpected message: %s", msg)
	}
	if Message(nil) != "" {
		t.Error("Expected empty message for no errors")
	}
}
