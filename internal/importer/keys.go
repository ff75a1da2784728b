package importer

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// ClientKey is the business key of a client: name and phone, case-insensitive.
type ClientKey struct {
	Name  string
	Phone string
}

// ServiceKey is the business key of a service: case-insensitive name and the
// exact unit cost.
type ServiceKey struct {
	Name string
	Cost string
}

func NewClientKey(name, phone string) ClientKey {
	return ClientKey{Name: fold(name), Phone: fold(phone)}
}

func NewServiceKey(name string, cost decimal.Decimal) ServiceKey {
	return ServiceKey{Name: fold(name), Cost: cost.StringFixed(2)}
}

func WorkerKey(name string) string {
	return fold(name)
}

// fold collapses inner whitespace and case-folds. A Caser keeps state, so one
// is made per call.
func fold(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		return ""
	}
	return cases.Fold().String(collapsed)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
