// Package export writes document listings as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"backoffice/internal/model"
)

const (
	invoiceSheet = "Factures"
	// ContentTypeXLSX is the media type of the generated workbooks.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var invoiceHeaders = []string{"Numéro", "Date", "Échéance", "Client", "Statut", "Total HT", "TVA", "Total TTC"}

// Invoices writes one row per invoice into a single-sheet workbook.
func Invoices(invoices []model.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range invoiceHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(invoiceSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for n, inv := range invoices {
		row := n + 2
		clientName := ""
		if inv.Client != nil {
			clientName = inv.Client.Name
		}
		dueDate := ""
		if inv.DueDate != nil {
			dueDate = inv.DueDate.Format("2006-01-02")
		}
		values := []interface{}{
			inv.Number,
			inv.Date.Format("2006-01-02"),
			dueDate,
			clientName,
			inv.Status.Label(),
			inv.TotalHT.InexactFloat64(),
			inv.TotalTVA.InexactFloat64(),
			inv.TotalTTC.InexactFloat64(),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(invoiceSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
