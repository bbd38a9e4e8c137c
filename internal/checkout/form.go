package checkout

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

// newValidator reports fields by their JSON names. "mailbox" additionally
// requires a dotted domain, which the stock email rule does not.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

var fieldLabels = map[string]string{
	"customerName": "name",
	"email":        "email",
	"phone":        "phone",
	"pickupDate":   "pickup date",
	"returnDate":   "return date",
}

func fieldErrors(err error) FieldErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}
	fe := FieldErrors{}
	for _, e := range verrs {
		field := e.Field()
		if _, seen := fe[field]; seen {
			continue
		}
		switch e.Tag() {
		case "required":
			fe[field] = fieldLabels[field] + " is required"
		case "email", "mailbox":
			fe[field] = "enter a valid email address"
		case "datetime":
			fe[field] = "use YYYY-MM-DD"
		default:
			fe[field] = "invalid value"
		}
	}
	return fe
}

// Form is the customer details step shared by the cart and direct booking
// flows. Dates are ISO calendar dates.
type Form struct {
	CustomerName string `json:"customerName" validate:"required"`
	Email        string `json:"email" validate:"required,email,mailbox"`
	Phone        string `json:"phone" validate:"required"`
	PickupDate   string `json:"pickupDate" validate:"required,datetime=2006-01-02"`
	ReturnDate   string `json:"returnDate" validate:"required,datetime=2006-01-02"`
	Notes        string `json:"notes,omitempty"`

	// Payment is what the payment widget produced for this attempt.
	Payment PaymentDetails `json:"payment"`
}

type PaymentDetails struct {
	Token        string `json:"token,omitempty"`
	MethodID     string `json:"methodId,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// FieldErrors maps form fields to messages; they block submission and are
// shown inline.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

func (f *Form) normalize() {
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.PickupDate = strings.TrimSpace(f.PickupDate)
	f.ReturnDate = strings.TrimSpace(f.ReturnDate)
	f.Notes = strings.TrimSpace(f.Notes)
}

// Validate trims the form and returns nil when it can be submitted.
func (f *Form) Validate() FieldErrors {
	f.normalize()
	fe := FieldErrors{}
	if err := validate.Struct(f); err != nil {
		fe = fieldErrors(err)
	}

	_, badPickup := fe["pickupDate"]
	_, badReturn := fe["returnDate"]
	if !badPickup && !badReturn {
		if pickup, ret := f.Dates(); ret.Before(pickup) {
			fe["returnDate"] = "return date must be on or after pickup date"
		}
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Dates returns the parsed pickup and return dates. Call after Validate.
func (f Form) Dates() (pickup, ret time.Time) {
	pickup, _ = parseDate(f.PickupDate)
	ret, _ = parseDate(f.ReturnDate)
	return pickup, ret
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// RentalDays counts both the pickup and the return day: 2025-01-10 to
// 2025-01-12 is 3 days. An inverted range is 0.
func RentalDays(pickup, ret time.Time) int {
	if ret.Before(pickup) {
		return 0
	}
	days := math.Ceil(ret.Sub(pickup).Hours() / 24)
	return int(days) + 1
}

// DirectSubtotal prices a single piece of equipment booked from its detail page.
func DirectSubtotal(dailyRate decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(days)))
}
