package core

import (
	"sort"
	"strings"
	"time"
)

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Collection names used by the document store.
const (
	CollectionReceipts   = "receipts"
	CollectionCategories = "categories"
)

// Receipt field names as they travel on the wire and in the store.
const (
	FieldID            = "id"
	FieldVendor        = "vendor"
	FieldDate          = "date"
	FieldTotal         = "total"
	FieldCurrency      = "currency"
	FieldCategory      = "category"
	FieldTax           = "tax"
	FieldSubtotal      = "subtotal"
	FieldPaymentMethod = "payment_method"
	FieldItems         = "items"
	FieldProcessedAt   = "processed_at"
	FieldStatus        = "status"
	FieldSource        = "source"
	FieldName          = "name"
)

// DefaultCategories seeds the categories collection when it is empty.
var DefaultCategories = []string{
	"Groceries",
	"Restaurants",
	"Gas",
	"Shopping",
	"Utilities",
	"Healthcare",
	"Entertainment",
	"Other",
}

type (
	Status string

	// Record is a receipt document as received from upstream or read from the store.
	// Unknown fields are preserved.
	Record map[string]any

	// Date keeps the caller's raw date text next to its parsed value.
	// Time is zero when Raw is empty or could not be parsed.
	Date struct {
		time.Time
		Raw string
	}

	Item struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
	}

	Receipt struct {
		ID            string
		Vendor        string
		Date          Date
		Total         float64
		Currency      string
		Category      string
		Tax           float64
		Subtotal      float64
		PaymentMethod string
		Items         []Item
		ProcessedAt   string
		Status        Status
		Source        string
	}
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses raw into a Date. Unparseable input yields a Date with a zero Time.
func ParseDate(raw string) Date {
	raw = strings.TrimSpace(raw)
	d := Date{Raw: raw}
	if raw == "" {
		return d
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return d
		}
	}
	return d
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Date{Time: t, Raw: t.Format("2006-01-02")}
}

// IsAbsent reports whether no date text was supplied at all.
func (d Date) IsAbsent() bool {
	return d.Raw == ""
}

// Valid reports whether the date was parsed.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// ISO returns the YYYY-MM-DD form, or "" when the date is not valid.
func (d Date) ISO() string {
	if !d.Valid() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM bucket, or "" when the date is not valid.
func (d Date) MonthKey() string {
	if !d.Valid() {
		return ""
	}
	return d.Format("2006-01")
}

// Display renders the date as "Jan 2, 2006", "Unknown Date" or "Invalid Date".
func (d Date) Display() string {
	switch {
	case d.IsAbsent():
		return "Unknown Date"
	case !d.Valid():
		return "Invalid Date"
	default:
		return d.Format("Jan 2, 2006")
	}
}

// String returns the text value stored under key, or "" when absent or not textual.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		if n, ok := Amount(v); ok {
			return FormatAmount(n)
		}
		return ""
	}
}

// Number coerces the value under key into a float. Non-numeric values yield 0.
func (r Record) Number(key string) float64 {
	n, _ := Amount(r[key])
	return n
}

// Keys returns the sorted field names present in the record.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ReceiptFromRecord projects a stored document into a typed Receipt.
// Numeric fields are coerced leniently; anything non-numeric becomes 0.
func ReceiptFromRecord(r Record) Receipt {
	rc := Receipt{
		ID:            r.String(FieldID),
		Vendor:        r.String(FieldVendor),
		Date:          ParseDate(r.String(FieldDate)),
		Total:         r.Number(FieldTotal),
		Currency:      r.String(FieldCurrency),
		Category:      r.String(FieldCategory),
		Tax:           r.Number(FieldTax),
		Subtotal:      r.Number(FieldSubtotal),
		PaymentMethod: r.String(FieldPaymentMethod),
		ProcessedAt:   r.String(FieldProcessedAt),
		Status:        Status(r.String(FieldStatus)),
		Source:        r.String(FieldSource),
	}
	if raw, ok := r[FieldItems].([]any); ok {
		for _, it := range raw {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			item := Record(m)
			rc.Items = append(rc.Items, Item{
				Name:     item.String(FieldName),
				Price:    item.Number("price"),
				Quantity: item.Number("quantity"),
			})
		}
	}
	return rc
}

// ReceiptsFromRecords projects every record, preserving order.
func ReceiptsFromRecords(recs []Record) []Receipt {
	out := make([]Receipt, 0, len(recs))
	for _, r := range recs {
		out = append(out, ReceiptFromRecord(r))
	}
	return out
}

// ToRecord renders the receipt back into a document. Empty optional fields are omitted.
func (rc Receipt) ToRecord() Record {
	r := Record{
		FieldVendor:   rc.Vendor,
		FieldDate:     rc.Date.Raw,
		FieldTotal:    rc.Total,
		FieldCategory: rc.Category,
	}
	if rc.ID != "" {
		r[FieldID] = rc.ID
	}
	if rc.Currency != "" {
		r[FieldCurrency] = rc.Currency
	}
	if rc.Tax != 0 {
		r[FieldTax] = rc.Tax
	}
	if rc.Subtotal != 0 {
		r[FieldSubtotal] = rc.Subtotal
	}
	if rc.PaymentMethod != "" {
		r[FieldPaymentMethod] = rc.PaymentMethod
	}
	if len(rc.Items) > 0 {
		items := make([]any, 0, len(rc.Items))
		for _, it := range rc.Items {
			items = append(items, map[string]any{
				FieldName:  it.Name,
				"price":    it.Price,
				"quantity": it.Quantity,
			})
		}
		r[FieldItems] = items
	}
	if rc.ProcessedAt != "" {
		r[FieldProcessedAt] = rc.ProcessedAt
	}
	if rc.Status != "" {
		r[FieldStatus] = string(rc.Status)
	}
	if rc.Source != "" {
		r[FieldSource] = rc.Source
	}
	return r
}
