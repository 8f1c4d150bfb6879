// Package receipt formats a committed bill as printable plain text.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/frontcounter/internal/model"
)

const (
	width     = 48
	nameWidth = 22
)

// TextRenderer renders fixed-width receipts.
type TextRenderer struct {
	Header   string
	Location *time.Location
}

func NewTextRenderer(header string) *TextRenderer {
	return &TextRenderer{Header: header, Location: time.Local}
}

func (r *TextRenderer) Render(snap model.BillSnapshot, conf model.OrderConfirmation) string {
	var b strings.Builder
	rule := strings.Repeat("-", width) + "\n"

	if r.Header != "" {
		b.WriteString(center(r.Header) + "\n")
	}
	b.WriteString(rule)
	fmt.Fprintf(&b, "Bill:  %s\n", snap.BillNumber)
	fmt.Fprintf(&b, "Order: %s\n", conf.OrderID)
	at := conf.CreatedAt
	if at.IsZero() {
		at = snap.TakenAt
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	fmt.Fprintf(&b, "Date:  %s\n", at.In(loc).Format("2006-01-02 15:04:05"))
	if snap.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", snap.CustomerName)
	}
	if snap.CustomerPhone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", snap.CustomerPhone)
	}
	b.WriteString(rule)

	var units int64
	for _, it := range snap.Items {
		units += it.Quantity
		qty := fmt.Sprintf("%s x %s", humanize.Comma(it.Quantity), Money(it.UnitPrice))
		fmt.Fprintf(&b, "%-*s %s\n", nameWidth, clip(it.DisplayName, nameWidth), leftPad(qty+"  "+Money(it.LineTotal()), width-nameWidth-1))
	}
	b.WriteString(rule)

	total := conf.Total
	if total.IsZero() && !snap.Total.IsZero() {
		total = snap.Total
	}
	fmt.Fprintf(&b, "%-*s%s\n", width/2, fmt.Sprintf("Items: %s", humanize.Comma(units)), leftPad("TOTAL "+Money(total), width-width/2))
	return b.String()
}

// Money formats d with two decimals and thousands separators.
func Money(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(whole.IntPart()), cents)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

func leftPad(s string, n int) string {
	if pad := n - len([]rune(s)); pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}

func center(s string) string {
	if pad := (width - len([]rune(s))) / 2; pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}
