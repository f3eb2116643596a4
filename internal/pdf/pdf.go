// Package pdf renders invoices, proformas and delivery notes as plain tabular
// A4 documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"backoffice/internal/config"
	"backoffice/internal/model"
)

// Renderer prints documents under the company header.
type Renderer struct {
	company  config.Company
	currency string
}

func NewRenderer(company config.Company, currency string) *Renderer {
	return &Renderer{company: company, currency: currency}
}

// Filename is the attachment name of a rendered document.
func Filename(number string) string {
	return number + ".pdf"
}

type field struct {
	label string
	value string
}

type column struct {
	title string
	width float64
	align string
}

// document is the layout-neutral content of one page set.
type document struct {
	title   string
	number  string
	date    time.Time
	fields  []field
	client  *model.Client
	columns []column
	rows    [][]string
	totals  []field
	notes   string
}

var pricedColumns = []column{
	{"Désignation", 70, "L"},
	{"Qté", 15, "R"},
	{"P.U. HT", 25, "R"},
	{"TVA %", 15, "R"},
	{"Total HT", 25, "R"},
	{"Total TTC", 30, "R"},
}

func (r *Renderer) Invoice(inv *model.Invoice) ([]byte, error) {
	doc := document{
		title:   "FACTURE",
		number:  inv.Number,
		date:    inv.Date,
		fields:  []field{{"Statut", inv.Status.Label()}},
		client:  inv.Client,
		columns: pricedColumns,
		notes:   inv.Notes,
	}
	if inv.DueDate != nil {
		doc.fields = append(doc.fields, field{"Échéance", inv.DueDate.Format("02/01/2006")})
	}
	for _, it := range inv.Items {
		doc.rows = append(doc.rows, []string{
			it.Description, quantity(it.Quantity), r.amount(it.UnitPrice, false),
			it.TVARate.String(), r.amount(it.TotalHT, false), r.amount(it.TotalTTC, false),
		})
	}
	doc.totals = r.totals(inv.TotalHT, inv.TotalTVA, inv.TotalTTC)
	return r.render(doc)
}

func (r *Renderer) Proforma(p *model.Proforma) ([]byte, error) {
	doc := document{
		title:   "FACTURE PROFORMA",
		number:  p.Number,
		date:    p.Date,
		fields:  []field{{"Statut", p.Status.Label()}},
		client:  p.Client,
		columns: pricedColumns,
		notes:   p.Notes,
	}
	if p.ValidityDate != nil {
		doc.fields = append(doc.fields, field{"Valable jusqu'au", p.ValidityDate.Format("02/01/2006")})
	}
	for _, it := range p.Items {
		doc.rows = append(doc.rows, []string{
			it.Description, quantity(it.Quantity), r.amount(it.UnitPrice, false),
			it.TVARate.String(), r.amount(it.TotalHT, false), r.amount(it.TotalTTC, false),
		})
	}
	doc.totals = r.totals(p.TotalHT, p.TotalTVA, p.TotalTTC)
	return r.render(doc)
}

func (r *Renderer) DeliveryNote(n *model.DeliveryNote) ([]byte, error) {
	doc := document{
		title:  "BON DE LIVRAISON",
		number: n.Number,
		date:   n.Date,
		client: n.Client,
		columns: []column{
			{"Désignation", 100, "L"},
			{"Quantité", 25, "R"},
			{"Observation", 55, "L"},
		},
		notes: n.Notes,
	}
	if label := n.PaymentMethod.Label(); label != "" {
		doc.fields = append(doc.fields, field{"Paiement", label})
	}
	if n.DeliveredBy != "" {
		doc.fields = append(doc.fields, field{"Livré par", n.DeliveredBy})
	}
	for _, it := range n.Items {
		doc.rows = append(doc.rows, []string{it.Description, quantity(it.Quantity), it.Observation})
	}
	return r.render(doc)
}

func (r *Renderer) totals(ht, tva, ttc decimal.Decimal) []field {
	return []field{
		{"Total HT", r.amount(ht, true)},
		{"TVA", r.amount(tva, true)},
		{"Total TTC", r.amount(ttc, true)},
	}
}

func (r *Renderer) render(doc document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, tr(r.legalLine()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, tr(r.company.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range []string{r.company.Slogan, r.company.Address, r.contactLine()} {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s N° %s", doc.title, doc.number)), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("Date : "+doc.date.Format("02/01/2006")), "", 1, "L", false, 0, "")
	for _, f := range doc.fields {
		pdf.CellFormat(0, 6, tr(f.label+" : "+f.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if doc.client != nil {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, tr("Client : "+doc.client.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, line := range []string{doc.client.Address, doc.client.Phone, doc.client.Email, ninea(doc.client.NINEA)} {
			if line != "" {
				pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
			}
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range doc.columns {
		pdf.CellFormat(c.width, 7, tr(c.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range doc.rows {
		for i, c := range doc.columns {
			pdf.CellFormat(c.width, 6, tr(row[i]), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(doc.totals) > 0 {
		pdf.Ln(4)
		for _, t := range doc.totals {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(130, 6, tr(t.label), "", 0, "R", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(50, 6, tr(t.value), "", 1, "R", false, 0, "")
		}
	}

	if strings.TrimSpace(doc.notes) != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(doc.notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.number, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) contactLine() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.company.Phone, r.company.Phone2, r.company.Email} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

func (r *Renderer) legalLine() string {
	parts := make([]string, 0, 2)
	if r.company.NINEA != "" {
		parts = append(parts, "NINEA : "+r.company.NINEA)
	}
	if r.company.RCCM != "" {
		parts = append(parts, "RCCM : "+r.company.RCCM)
	}
	return strings.Join(parts, " - ")
}

func ninea(v string) string {
	if v == "" {
		return ""
	}
	return "NINEA : " + v
}

// amount formats d with a space as thousands separator, e.g. "1 234 567,50".
func (r *Renderer) amount(d decimal.Decimal, withCurrency bool) string {
	s := FormatAmount(d)
	if withCurrency && r.currency != "" {
		s += " " + r.currency
	}
	return s
}

// FormatAmount renders d with two decimals, a comma as decimal mark and
// spaces between thousands.
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(ch)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

func quantity(d decimal.Decimal) string {
	return d.String()
}
