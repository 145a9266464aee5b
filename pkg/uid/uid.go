package uid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CustomerID derives a deterministic customer id from the tenant and the
// entered name, so repeated walk-in entries map to a single customer row.
func CustomerID(tenantID, name string) string {
	return fmt.Sprintf("%s:%s", tenantID, strings.ToLower(strings.TrimSpace(name)))
}

// InvoiceNo builds a human-readable invoice number for a sale recorded at t.
// Uniqueness comes from the order id; this is display-only.
func InvoiceNo(branchID string, t time.Time) string {
	return fmt.Sprintf("INV-%s-%s", strings.ToUpper(branchID), t.UTC().Format("20060102-150405"))
}
