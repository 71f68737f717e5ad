// Package exporter builds administrative exports of the entitlement
// records.
package exporter

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"keygate/internal/entitlement"
)

const accountsSheet = "Accounts"

var accountsHeader = []string{
	"Account ID", "Username", "Key", "HWID", "Created", "Expires", "Active",
}

// BuildAccountsWorkbook renders the records into an XLSX workbook with one
// row per account. Callers own closing the returned file.
func BuildAccountsWorkbook(records []*entitlement.UserRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), accountsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeRow(f, 1, toInterfaces(accountsHeader)); err != nil {
		f.Close()
		return nil, err
	}

	now := time.Now()
	for i, rec := range records {
		row := []interface{}{
			rec.AccountID,
			rec.Username,
			rec.Key,
			rec.HWID,
			time.Unix(rec.CreateTime, 0).UTC().Format(time.RFC3339),
			time.Unix(rec.EndTime, 0).UTC().Format(time.RFC3339),
			rec.ActiveAt(now),
		}
		if err := writeRow(f, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(accountsSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
