package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the marker that precedes every amount in service text.
const DefaultCurrency = "GH₵"

// ServiceEntry is one parsed "<name> - <qty> pcs - <currency><amount>" entry.
type ServiceEntry struct {
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// LineCost is quantity times unit price.
func (e ServiceEntry) LineCost() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt32(e.Quantity))
}

var (
	serviceHeadPattern   = regexp.MustCompile(`(?i)^\s*(.+?)\s*-\s*(\d+)\s*pcs?\s*-?\s*$`)
	serviceAmountPattern = regexp.MustCompile(`^\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
)

// ParseServiceText splits text into entries at the currency marker. Each
// segment after a marker starts with the amount of the entry before it and
// carries the head of the next one. Malformed entries are dropped and
// described in the returned warnings.
func ParseServiceText(text, currency string) ([]ServiceEntry, []string) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	segments := strings.Split(text, currency)
	if len(segments) == 1 {
		return nil, []string{fmt.Sprintf("service text %q has no %s amount", strings.TrimSpace(text), currency)}
	}

	var (
		entries  []ServiceEntry
		warnings []string
	)
	head := segments[0]
	for _, segment := range segments[1:] {
		loc := serviceAmountPattern.FindStringSubmatchIndex(segment)
		if loc == nil {
			warnings = append(warnings, fmt.Sprintf("service entry %q has no amount after %s", strings.TrimSpace(head), currency))
			head = segment
			continue
		}
		amount := strings.ReplaceAll(segment[loc[2]:loc[3]], ",", "")
		rest := segment[loc[1]:]

		entry, note, err := parseServiceHead(head, amount)
		switch {
		case err != nil:
			warnings = append(warnings, err.Error())
		default:
			if note != "" {
				warnings = append(warnings, note)
			}
			entries = append(entries, entry)
		}
		head = rest
	}
	if strings.TrimSpace(head) != "" {
		warnings = append(warnings, fmt.Sprintf("trailing service text %q has no amount", strings.TrimSpace(head)))
	}
	return entries, warnings
}

// parseServiceHead parses "name - qty pcs - " plus its amount. Amounts are
// stored with two decimals, so finer amounts are rounded and noted.
func parseServiceHead(head, amount string) (ServiceEntry, string, error) {
	m := serviceHeadPattern.FindStringSubmatch(head)
	if m == nil {
		return ServiceEntry{}, "", fmt.Errorf("malformed service entry %q", strings.TrimSpace(head))
	}
	name := cleanText(m[1])
	qty, err := strconv.ParseInt(m[2], 10, 32)
	if err != nil || qty <= 0 {
		return ServiceEntry{}, "", fmt.Errorf("service %q has invalid quantity %q", name, m[2])
	}
	price, err := decimal.NewFromString(amount)
	if err != nil {
		return ServiceEntry{}, "", fmt.Errorf("service %q has invalid amount %q", name, amount)
	}
	var note string
	if rounded := price.Round(2); !rounded.Equal(price) {
		note = fmt.Sprintf("service %q amount %s rounded to %s", name, amount, rounded.StringFixed(2))
		price = rounded
	}
	return ServiceEntry{Name: name, Quantity: int32(qty), UnitPrice: price}, note, nil
}
