package sqlite

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// nullableCloudID maps an empty cloud ID to NULL so the uniqueness of real
// document IDs is not diluted by empty strings.
func nullableCloudID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// cloudIDString unwraps a nullable cloud_id column.
func cloudIDString(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// parseAmount parses a TEXT amount column into an exact decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
