package uid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsValid(t *testing.T) {
	id := New()
	assert.True(t, IsValid(id))
	assert.NotEqual(t, id, New())
	assert.False(t, IsValid("not-a-uuid"))
}

func TestCustomerIDIsDeterministic(t *testing.T) {
	assert.Equal(t, "t1:ana", CustomerID("t1", "Ana"))
	assert.Equal(t, CustomerID("t1", "  ana  "), CustomerID("t1", "ANA"))
	assert.NotEqual(t, CustomerID("t1", "ana"), CustomerID("t2", "ana"))
}

func TestInvoiceNo(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "INV-B1-20260830-123045", InvoiceNo("b1", at))
}
