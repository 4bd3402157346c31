// Package printing renders invoices as HTML receipts and PDFs, and stores PDFs in object storage.
package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const receiptHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Invoice.Number}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 0 auto; max-width: 80mm; }
h1 { font-size: 16px; margin: 0; }
table { width: 100%; border-collapse: collapse; }
td, th { padding: 2px 0; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { border-top: 1px solid #000; }
.muted { color: #555; }
</style>
</head>
<body>
<header>
<h1>{{.Shop.Name}}</h1>
{{if .Shop.Address}}<div>{{.Shop.Address}}</div>{{end}}
{{if .Shop.Phone}}<div>Tel. {{.Shop.Phone}}</div>{{end}}
</header>
<p>
<strong>{{if eq .Invoice.Type "exchange"}}Exchange invoice{{else}}Invoice{{end}} {{.Invoice.Number}}</strong><br>
{{date .Invoice.CreatedAt}}<br>
Customer: {{.CustomerName}}<br>
Status: {{label .Invoice.Status}}
</p>
<table>
<thead><tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr></thead>
<tbody>
{{range .Invoice.Items}}<tr>
<td>{{.Description}}{{if gt .ReturnedQuantity 0}} <span class="muted">({{.ReturnedQuantity}} returned)</span>{{end}}</td>
<td class="num">{{.Quantity}}</td>
<td class="num">{{money .UnitPrice}}</td>
<td class="num">{{money .LineTotal}}</td>
</tr>{{end}}
</tbody>
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{money .Invoice.Subtotal}}</td></tr>
{{if .Invoice.Discount.IsPositive}}<tr><td>Discount</td><td class="num">-{{money .Invoice.Discount}}</td></tr>{{end}}
{{if .Invoice.TaxTotal.IsPositive}}<tr><td>Tax ({{percent .Invoice.TaxRate}})</td><td class="num">{{money .Invoice.TaxTotal}}</td></tr>{{end}}
<tr><td><strong>Total</strong></td><td class="num"><strong>{{money .Invoice.Total}}</strong></td></tr>
<tr><td>Paid</td><td class="num">{{money .Invoice.AmountPaid}}</td></tr>
{{if .Invoice.AmountCredited.IsPositive}}<tr><td>Credited</td><td class="num">-{{money .Invoice.AmountCredited}}</td></tr>{{end}}
{{if .Invoice.Balance.IsPositive}}<tr><td>Balance due</td><td class="num">{{money .Invoice.Balance}}</td></tr>{{end}}
</table>
{{if .Invoice.PaymentMethod}}<p class="muted">Paid by {{label .Invoice.PaymentMethod}}</p>{{end}}
{{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}
<footer class="muted">Thank you for your business.</footer>
</body>
</html>`

// receiptData is what the receipt template sees.
type receiptData struct {
	Shop         config.ShopConfig
	Invoice      *models.Invoice
	CustomerName string
}

// Formatter renders money, dates and labels for one shop currency.
// Printers and casers are stateful, so each call builds its own.
type Formatter struct {
	unit currency.Unit
	lang language.Tag
}

// NewFormatter builds a Formatter for an ISO currency code; unknown codes fall back to GBP.
func NewFormatter(code string) *Formatter {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		unit = currency.GBP
	}
	return &Formatter{unit: unit, lang: language.BritishEnglish}
}

// Money formats an amount with the currency symbol, e.g. "£ 12.50".
func (f *Formatter) Money(d decimal.Decimal) string {
	return message.NewPrinter(f.lang).Sprint(currency.Symbol(f.unit.Amount(d.Round(2).InexactFloat64())))
}

// Percent formats a rate such as 0.2 as "20%".
func (f *Formatter) Percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}

// Label turns a snake_case status into display text: "partially_refunded" -> "Partially Refunded".
func (f *Formatter) Label(s string) string {
	return cases.Title(f.lang).String(strings.ReplaceAll(s, "_", " "))
}

func (f *Formatter) Date(t time.Time) string {
	return t.Format("02 Jan 2006 15:04")
}

// ReceiptTemplate parses the receipt layout with f's formatting helpers.
func ReceiptTemplate(f *Formatter) *template.Template {
	return template.Must(template.New("receipt").Funcs(template.FuncMap{
		"money":   f.Money,
		"percent": f.Percent,
		"label":   f.Label,
		"date":    f.Date,
	}).Parse(receiptHTML))
}

// RenderReceipt writes the HTML receipt for an invoice loaded with its items and customer.
func RenderReceipt(tpl *template.Template, shop config.ShopConfig, invoice *models.Invoice) ([]byte, error) {
	data := receiptData{Shop: shop, Invoice: invoice, CustomerName: "Walk-in Customer"}
	if invoice.Customer != nil {
		data.CustomerName = invoice.Customer.Name
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", invoice.Number, err)
	}
	return buf.Bytes(), nil
}
