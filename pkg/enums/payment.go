package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the disposition recorded when a table is settled.
type PaymentStatus string

const (
	PaymentStatusSettled PaymentStatus = "Settled"
	PaymentStatusDue     PaymentStatus = "Due"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusSettled,
	PaymentStatusDue,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus, ignoring case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validPaymentStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentMethod is how the bill was (or will be) paid.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "Cash"
	PaymentMethodCard  PaymentMethod = "Card"
	PaymentMethodUPI   PaymentMethod = "UPI"
	PaymentMethodDue   PaymentMethod = "Due"
	PaymentMethodOther PaymentMethod = "Other"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodDue,
	PaymentMethodOther,
}

// ReportedPaymentMethods are the buckets summed by the payment reports.
var ReportedPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodDue,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod, ignoring case.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validPaymentMethods {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
