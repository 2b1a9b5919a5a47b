/*
export.go - Spreadsheet exports

PURPOSE:
  Writes contact statements and the stock list as .xlsx workbooks for the
  accountant. The numbers are the same ones the JSON endpoints return.

ENDPOINTS:
  GET /api/contacts/{id}/statement.xlsx?from=&to=
  GET /api/inventory.xlsx
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"github.com/warp/gold-ledger/gold"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var statementHeaders = []any{
	"Date", "Reference", "Ref ID", "Memo",
	"Debit (Rial)", "Credit (Rial)", "Debit (g750)", "Credit (g750)", "Debit (count)", "Credit (count)",
	"Balance (Rial)", "Balance (g750)", "Balance (count)",
}

var inventoryHeaders = []any{
	"Product ID", "Product", "Category", "Weight (g)", "Weight (g750)", "Quantity", "Value (Rial)",
}

// ExportStatement writes the contact statement as a workbook.
// GET /api/contacts/{id}/statement.xlsx
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.statement(r)
	if err != nil {
		h.respondError(w, "ExportStatement", err)
		return
	}
	f, err := statementWorkbook(st)
	if err != nil {
		h.respondError(w, "ExportStatement", err)
		return
	}
	defer f.Close()
	writeWorkbook(w, f, "statement-"+st.ContactID+".xlsx")
}

// ExportInventory writes the booked stock of every product.
// GET /api/inventory.xlsx
func (h *Handler) ExportInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.Engine.ListProducts(ctx)
	if err != nil {
		h.respondError(w, "ExportInventory", err)
		return
	}
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		b, err := h.Engine.GetInventoryBalance(ctx, p.Product.ID)
		if err != nil {
			h.respondError(w, "ExportInventory", err)
			return
		}
		rows = append(rows, []any{
			p.Product.ID, p.Product.Name, p.Category.Name,
			num(b.WeightGrams.Value), num(b.Weight750.Value), num(b.Quantity.Value), num(b.ValueRials.Value),
		})
	}
	f, err := workbook("Inventory", inventoryHeaders, rows)
	if err != nil {
		h.respondError(w, "ExportInventory", err)
		return
	}
	defer f.Close()
	writeWorkbook(w, f, "inventory.xlsx")
}

func statementWorkbook(st gold.Statement) (*excelize.File, error) {
	rows := make([][]any, 0, len(st.Lines)+2)
	rows = append(rows, []any{
		"", "opening", "", "", "", "", "", "", "", "",
		num(st.Opening.Rial.Value), num(st.Opening.Weight.Value), num(st.Opening.Count.Value),
	})
	for _, line := range st.Lines {
		e := line.Entry
		rows = append(rows, []any{
			e.Date.String(), string(e.Ref.Type), e.Ref.ID, e.Memo,
			num(e.Rial.Debit), num(e.Rial.Credit),
			num(e.Weight.Debit), num(e.Weight.Credit),
			num(e.Count.Debit), num(e.Count.Credit),
			num(line.Balance.Rial.Value), num(line.Balance.Weight.Value), num(line.Balance.Count.Value),
		})
	}
	rows = append(rows, []any{
		st.Period.End.String(), "closing", "", "", "", "", "", "", "", "",
		num(st.Closing.Rial.Value), num(st.Closing.Weight.Value), num(st.Closing.Count.Value),
	})
	return workbook("Statement", statementHeaders, rows)
}

// workbook builds a single-sheet file with a header row.
func workbook(sheet string, headers []any, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

func writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write file", http.StatusInternalServerError)
	}
}

// num renders a decimal as a spreadsheet number.
func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
