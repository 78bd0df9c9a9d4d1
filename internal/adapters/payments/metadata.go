package payments

import (
	"strconv"
	"unicode/utf8"
)

// Stripe rejects intents whose metadata breaks these limits.
const (
	MaxMetadataKeys        = 50
	MaxMetadataKeyLength   = 40
	MaxMetadataValueLength = 500
)

// Metadata keys outside the per-item block.
const (
	MetaInvoiceID        = "invoice_id"
	MetaInvoiceSignature = "invoice_signature"
	MetaTotalVoucher     = "total_voucher"
	MetaItemCount        = "item_count"
	MetaItemsOmitted     = "items_omitted"
)

const maxItemNameLength = 100

// IntentMetadata describes an invoice's basket as intent metadata.
// Items are numbered from 1 and keyed by that number, never by record ID,
// so every key stays under MaxMetadataKeyLength:
//
//	item1           booking:<id>
//	item1_name      Pole Level 1 - Mon 02 Mar 18:00
//	item1_cost_in_p 1200
//	item1_voucher   SPRING10
//
// Items that would push the map past MaxMetadataKeys are counted in items_omitted.
type IntentMetadata struct {
	values  map[string]string
	items   int
	omitted int
}

// NewIntentMetadata starts the metadata for one invoice.
func NewIntentMetadata(invoiceID, signature string) *IntentMetadata {
	return &IntentMetadata{values: map[string]string{
		MetaInvoiceID:        invoiceID,
		MetaInvoiceSignature: signature,
	}}
}

// SetTotalVoucher records the voucher applied to the whole invoice.
func (m *IntentMetadata) SetTotalVoucher(code string) {
	if code != "" {
		m.values[MetaTotalVoucher] = truncate(code, MaxMetadataValueLength)
	}
}

// AddItem appends a basket line and reports whether it fit.
func (m *IntentMetadata) AddItem(kind, id, name string, cost int64, voucherCode string) bool {
	need := 3
	if voucherCode != "" {
		need++
	}
	// room is kept for item_count and items_omitted
	if len(m.values)+need > MaxMetadataKeys-2 {
		m.omitted++
		return false
	}
	m.items++
	n := m.items
	m.values[itemKey(n, "")] = ItemRef(kind, id)
	m.values[itemKey(n, "_name")] = truncate(name, maxItemNameLength)
	m.values[itemKey(n, "_cost_in_p")] = strconv.FormatInt(cost, 10)
	if voucherCode != "" {
		m.values[itemKey(n, "_voucher")] = truncate(voucherCode, MaxMetadataValueLength)
	}
	return true
}

// Map returns the metadata to send with the intent.
func (m *IntentMetadata) Map() map[string]string {
	out := copyMetadata(m.values)
	out[MetaItemCount] = strconv.Itoa(m.items)
	if m.omitted > 0 {
		out[MetaItemsOmitted] = strconv.Itoa(m.omitted)
	}
	return out
}

// ItemRef is the metadata value identifying a basket line.
func ItemRef(kind, id string) string {
	return kind + ":" + id
}

// ChargedFor returns what the intent charged for the basket line kind/id, in pence.
// ok is false when the line is not described in the metadata.
func (pi PaymentIntent) ChargedFor(kind, id string) (amount int64, ok bool) {
	ref := ItemRef(kind, id)
	for n := 1; ; n++ {
		v, found := pi.Metadata[itemKey(n, "")]
		if !found {
			return 0, false
		}
		if v != ref {
			continue
		}
		cost, err := strconv.ParseInt(pi.Metadata[itemKey(n, "_cost_in_p")], 10, 64)
		return cost, err == nil
	}
}

func itemKey(n int, suffix string) string {
	return "item" + strconv.Itoa(n) + suffix
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
