// Package tally renders posted vouchers as Tally-style XML for import into
// external accounting tools. The writer is deliberately hand-rolled: the
// target format predates XML namespaces and uses unwrapped uppercase tags
// that encoding/xml's struct marshaling fights against.
package tally

import (
	"strings"
	"time"

	"github.com/hisabworks/hisab_backend/models"
	"github.com/shopspring/decimal"
)

// LedgerNamer resolves a ledger id to its display name. Unknown ids render
// as an empty name rather than failing the whole export.
type LedgerNamer interface {
	LedgerName(id int) string
}

// LedgerNameMap is the common LedgerNamer: a snapshot of id -> name.
type LedgerNameMap map[int]string

func (m LedgerNameMap) LedgerName(id int) string { return m[id] }

// ExportVouchers renders the vouchers as a TALLYMESSAGE envelope, one
// VOUCHER node per voucher in input order. Amounts are signed from the
// ledger's perspective: debits positive, credits negative.
func ExportVouchers(vouchers []*models.Voucher, names LedgerNamer) string {
	var b strings.Builder
	b.WriteString("<ENVELOPE>\n")
	b.WriteString(" <BODY>\n")
	b.WriteString("  <TALLYMESSAGE>\n")
	for _, v := range vouchers {
		writeVoucher(&b, v, names)
	}
	b.WriteString("  </TALLYMESSAGE>\n")
	b.WriteString(" </BODY>\n")
	b.WriteString("</ENVELOPE>\n")
	return b.String()
}

func writeVoucher(b *strings.Builder, v *models.Voucher, names LedgerNamer) {
	b.WriteString("   <VOUCHER>\n")
	writeTag(b, 4, "DATE", compactDate(v.VoucherDate))
	writeTag(b, 4, "VOUCHERTYPENAME", string(v.Type))
	writeTag(b, 4, "VOUCHERNUMBER", v.VoucherNumber)
	if v.Narration != "" {
		writeTag(b, 4, "NARRATION", v.Narration)
	}
	for _, e := range v.AccountingEntries {
		writeEntry(b, e, names)
	}
	b.WriteString("   </VOUCHER>\n")
}

func writeEntry(b *strings.Builder, e models.AccountingEntry, names LedgerNamer) {
	isDebit := e.Debit.IsPositive()
	amount := e.Debit
	if !isDebit {
		amount = e.Credit.Neg()
	}
	b.WriteString("    <ALLLEDGERENTRIES.LIST>\n")
	writeTag(b, 5, "LEDGERNAME", names.LedgerName(e.LedgerId))
	if isDebit {
		writeTag(b, 5, "ISDEEMEDPOSITIVE", "Yes")
	} else {
		writeTag(b, 5, "ISDEEMEDPOSITIVE", "No")
	}
	writeTag(b, 5, "AMOUNT", formatAmount(amount))
	b.WriteString("    </ALLLEDGERENTRIES.LIST>\n")
}

func writeTag(b *strings.Builder, indent int, tag string, value string) {
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(">")
	b.WriteString(escape(value))
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">\n")
}

// compactDate renders the numeric date form the importer expects: 20260828.
func compactDate(t time.Time) string {
	return t.Format("20060102")
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
