package exportsvc

import (
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
)

const InvoiceSheet = "Invoices"

// InvoiceHeader is the first row of the invoice sheet.
var InvoiceHeader = []interface{}{
	"Number", "Booking", "Client", "Provider", "Status", "Issued", "Due", "Paid",
	"Currency", "Subtotal", "Tax rate %", "Tax", "Total", "Overdue",
}

// XLSXExporter writes spreadsheets with excelize.
type XLSXExporter struct{}

var _ invoice.Exporter = (*XLSXExporter)(nil)

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ExportInvoices writes one row per invoice, amounts in major units.
func (XLSXExporter) ExportInvoices(w io.Writer, invoices []invoice.Invoice) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing workbook")
		}
	}()

	if err = f.SetSheetName("Sheet1", InvoiceSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	header := append([]interface{}(nil), InvoiceHeader...)
	if err = f.SetSheetRow(InvoiceSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(InvoiceHeader))
	if err = f.SetCellStyle(InvoiceSheet, "A1", lastCol+"1", bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	styles := newAmountStyles(f)
	for i, inv := range invoices {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			inv.Number,
			inv.BookingID,
			inv.ClientID,
			inv.ProviderID,
			inv.Status,
			inv.IssuedAt.Format("2006-01-02"),
			inv.DueDate.Format("2006-01-02"),
			paidDate(inv),
			inv.Currency,
			majorUnits(inv.Subtotal, inv.Currency),
			float64(inv.TaxRate) / 100,
			majorUnits(inv.TaxAmount, inv.Currency),
			majorUnits(inv.Total, inv.Currency),
			inv.Overdue,
		}
		if err = f.SetSheetRow(InvoiceSheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing invoice %s", inv.Number)
		}

		style, err := styles.get(inv.Currency)
		if err != nil {
			return err
		}
		from, _ := excelize.CoordinatesToCellName(10, row) // Subtotal
		to, _ := excelize.CoordinatesToCellName(13, row)   // Total
		if err = f.SetCellStyle(InvoiceSheet, from, to, style); err != nil {
			return errors.Wrap(err, "styling amounts")
		}
	}

	if err = f.SetColWidth(InvoiceSheet, "A", "D", 38); err != nil {
		return errors.Wrap(err, "sizing columns")
	}
	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func paidDate(inv invoice.Invoice) string {
	if inv.PaidAt == nil {
		return ""
	}
	return inv.PaidAt.Format("2006-01-02")
}

func majorUnits(minor int64, currency string) float64 {
	return float64(minor) / math.Pow10(core.CurrencyExponent(currency))
}

// amountStyles caches a number format per currency exponent.
type amountStyles struct {
	f      *excelize.File
	byExpo map[int]int
}

func newAmountStyles(f *excelize.File) *amountStyles {
	return &amountStyles{f: f, byExpo: make(map[int]int)}
}

func (s *amountStyles) get(currency string) (int, error) {
	exp := core.CurrencyExponent(currency)
	if id, ok := s.byExpo[exp]; ok {
		return id, nil
	}
	format := "0"
	if exp > 0 {
		format += "." + strings.Repeat("0", exp)
	}
	id, err := s.f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, errors.Wrap(err, "creating amount style")
	}
	s.byExpo[exp] = id
	return id, nil
}
