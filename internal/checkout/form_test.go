package checkout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validForm() Form {
	return Form{
		CustomerName: " Ada Lovelace ",
		Email:        "ada@example.com",
		Phone:        "+44 20 7946 0000",
		PickupDate:   "2025-01-10",
		ReturnDate:   "2025-01-12",
	}
}

func TestValidate_OK(t *testing.T) {
	f := validForm()
	if fe := f.Validate(); fe != nil {
		t.Fatalf("expected valid form, got %v", fe)
	}
	if f.CustomerName != "Ada Lovelace" {
		t.Fatalf("expected trimmed name, got %q", f.CustomerName)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Form)
		field string
	}{
		{"missing name", func(f *Form) { f.CustomerName = "  " }, "customerName"},
		{"missing email", func(f *Form) { f.Email = "" }, "email"},
		{"bad email", func(f *Form) { f.Email = "ada@example" }, "email"},
		{"email with space", func(f *Form) { f.Email = "ada lovelace@example.com" }, "email"},
		{"missing phone", func(f *Form) { f.Phone = "" }, "phone"},
		{"missing pickup", func(f *Form) { f.PickupDate = "" }, "pickupDate"},
		{"bad pickup", func(f *Form) { f.PickupDate = "10/01/2025" }, "pickupDate"},
		{"bad return", func(f *Form) { f.ReturnDate = "2025-02-30" }, "returnDate"},
		{"return before pickup", func(f *Form) { f.ReturnDate = "2025-01-09" }, "returnDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.edit(&f)
			fe := f.Validate()
			if fe[tt.field] == "" {
				t.Fatalf("expected error on %s, got %v", tt.field, fe)
			}
		})
	}
}

func TestRentalDays(t *testing.T) {
	d := func(s string) time.Time {
		v, _ := time.Parse(DateLayout, s)
		return v
	}
	tests := []struct {
		pickup, ret string
		want        int
	}{
		{"2025-01-10", "2025-01-12", 3},
		{"2025-01-10", "2025-01-10", 1},
		{"2025-02-28", "2025-03-01", 2},
		{"2025-01-12", "2025-01-10", 0},
	}
	for _, tt := range tests {
		if got := RentalDays(d(tt.pickup), d(tt.ret)); got != tt.want {
			t.Fatalf("%s..%s: expected %d, got %d", tt.pickup, tt.ret, tt.want, got)
		}
	}

	// Partial days round up.
	start := d("2025-01-10")
	if got := RentalDays(start, start.Add(25*time.Hour)); got != 3 {
		t.Fatalf("expected 3 for 25h, got %d", got)
	}
}

func TestDirectSubtotal(t *testing.T) {
	rate := decimal.RequireFromString("45.50")
	if got := DirectSubtotal(rate, 3); !got.Equal(decimal.RequireFromString("136.50")) {
		t.Fatalf("expected 136.50, got %s", got)
	}
	if got := DirectSubtotal(rate, 0); !got.IsZero() {
		t.Fatalf("invalid duration must price at zero, got %s", got)
	}
}

func TestValidate_Messages(t *testing.T) {
	f := validForm()
	f.CustomerName = ""
	f.Email = "ada@example"
	f.PickupDate = "10/01/2025"
	fe := f.Validate()
	want := FieldErrors{
		"customerName": "name is required",
		"email":        "enter a valid email address",
		"pickupDate":   "use YYYY-MM-DD",
	}
	if len(fe) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), fe)
	}
	for k, msg := range want {
		if fe[k] != msg {
			t.Fatalf("%s: expected %q, got %q", k, msg, fe[k])
		}
	}
}
