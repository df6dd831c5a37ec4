package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/money"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
)

// Import columns. One row per order line; rows sharing an external_ref
// form one order whose customer fields come from its first row.
const (
	colExternalRef  = "external_ref"
	colCustomerName = "customer_name"
	colPhone        = "phone"
	colCity         = "city"
	colAddress      = "address"
	colShippingFee  = "shipping_fee"
	colNotes        = "notes"
	colReference    = "reference"
	colSize         = "size"
	colColor        = "color"
	colBarcode      = "barcode"
	colQuantity     = "quantity"
)

// ImportError reports a spreadsheet row that could not be imported
type ImportError struct {
	Row         int    `json:"row"`
	ExternalRef string `json:"external_ref,omitempty"`
	Message     string `json:"message"`
}

// ImportReport summarizes an order import
type ImportReport struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Orders  []string      `json:"orders"`
	Errors  []ImportError `json:"errors"`
}

type importRow struct {
	line  int
	cells []string
}

type importGroup struct {
	ref  string
	rows []importRow
}

// ImportOrders creates orders from a CSV or XLSX sheet. External references
// already on record are skipped; an order with any unresolvable row is not
// created and each bad row is reported.
func (s *OrderService) ImportOrders(ctx context.Context, r io.Reader, format string) (*ImportReport, error) {
	table, err := tabular.Read(r, format)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	if s.maxImportRows > 0 && len(table.Rows) > s.maxImportRows {
		return nil, errors.Validation(map[string]string{
			"file": fmt.Sprintf("at most %d rows can be imported at once", s.maxImportRows),
		})
	}
	if err := checkImportColumns(table); err != nil {
		return nil, err
	}

	report := &ImportReport{Orders: []string{}, Errors: []ImportError{}}
	cell := func(row importRow, name string) string {
		i := table.Column(name)
		if i < 0 || i >= len(row.cells) {
			return ""
		}
		return strings.TrimSpace(row.cells[i])
	}

	var groups []*importGroup
	byRef := map[string]*importGroup{}
	for i, cells := range table.Rows {
		row := importRow{line: i + 2, cells: cells}
		ref := cell(row, colExternalRef)
		if ref == "" {
			report.Errors = append(report.Errors, ImportError{Row: row.line, Message: "external_ref is required"})
			continue
		}
		g, ok := byRef[ref]
		if !ok {
			g = &importGroup{ref: ref}
			byRef[ref] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	refs := make([]string, 0, len(groups))
	for _, g := range groups {
		refs = append(refs, g.ref)
	}
	existing, err := s.orderRepo.ExistingExternalRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		if existing[g.ref] {
			report.Skipped++
			continue
		}

		in, rowErrors := s.buildImportOrder(ctx, g, cell)
		if len(rowErrors) > 0 {
			report.Errors = append(report.Errors, rowErrors...)
			continue
		}

		o, err := s.CreateOrder(ctx, in)
		if err != nil {
			report.Errors = append(report.Errors, ImportError{Row: g.rows[0].line, ExternalRef: g.ref, Message: errorMessage(err)})
			continue
		}
		report.Created++
		report.Orders = append(report.Orders, o.Number)
	}

	s.logger.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("orders imported")

	return report, nil
}

func (s *OrderService) buildImportOrder(ctx context.Context, g *importGroup, cell func(importRow, string) string) (*OrderInput, []ImportError) {
	first := g.rows[0]
	ref := g.ref

	in := &OrderInput{
		ExternalRef:  &ref,
		CustomerName: cell(first, colCustomerName),
		Phone:        cell(first, colPhone),
		City:         cell(first, colCity),
		Address:      cell(first, colAddress),
		Notes:        cell(first, colNotes),
		source:       domain.SourceImport,
	}

	var errs []ImportError
	fail := func(row importRow, format string, args ...interface{}) {
		errs = append(errs, ImportError{Row: row.line, ExternalRef: ref, Message: fmt.Sprintf(format, args...)})
	}

	for _, field := range []struct{ name, value string }{
		{colCustomerName, in.CustomerName}, {colPhone, in.Phone}, {colCity, in.City},
	} {
		if field.value == "" {
			fail(first, "%s is required", field.name)
		}
	}

	if fee := cell(first, colShippingFee); fee != "" {
		m, err := money.Parse(fee)
		if err != nil {
			fail(first, "invalid shipping_fee %q", fee)
		}
		in.ShippingFee = m
	}

	for _, row := range g.rows {
		qty, err := strconv.Atoi(cell(row, colQuantity))
		if err != nil || qty <= 0 {
			fail(row, "invalid quantity %q", cell(row, colQuantity))
			continue
		}

		variantID, err := s.resolveVariant(ctx, cell(row, colBarcode), cell(row, colReference), cell(row, colSize), cell(row, colColor))
		if err != nil {
			fail(row, "%s", errorMessage(err))
			continue
		}
		in.Lines = append(in.Lines, LineInput{VariantID: variantID, Quantity: qty})
	}

	return in, errs
}

func (s *OrderService) resolveVariant(ctx context.Context, barcode, reference, size, color string) (string, error) {
	if barcode != "" {
		v, err := s.variants.FindByBarcode(ctx, barcode)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return "", fmt.Errorf("unknown barcode %q", barcode)
			}
			return "", err
		}
		return v.ID, nil
	}

	if reference == "" || size == "" {
		return "", fmt.Errorf("reference and size (or barcode) are required")
	}
	v, err := s.variants.FindByAttributes(ctx, reference, size, color)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", fmt.Errorf("unknown variant %s size %s %s", reference, size, color)
		}
		return "", err
	}
	return v.ID, nil
}

func checkImportColumns(t *tabular.Table) error {
	missing := []string{}
	for _, name := range []string{colExternalRef, colCustomerName, colPhone, colCity, colQuantity} {
		if t.Column(name) < 0 {
			missing = append(missing, name)
		}
	}
	hasAttributes := t.Column(colReference) >= 0 && t.Column(colSize) >= 0
	if !hasAttributes && t.Column(colBarcode) < 0 {
		missing = append(missing, colReference+"+"+colSize+" or "+colBarcode)
	}

	if len(missing) > 0 {
		return errors.Validation(map[string]string{"columns": "missing " + strings.Join(missing, ", ")})
	}
	return nil
}

func errorMessage(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// ImportTemplate returns an empty sheet with the import columns
func ImportTemplate() *tabular.Table {
	return &tabular.Table{
		Sheet: "Orders",
		Headers: []string{
			colExternalRef, colCustomerName, colPhone, colCity, colAddress, colShippingFee, colNotes,
			colReference, colSize, colColor, colBarcode, colQuantity,
		},
	}
}
