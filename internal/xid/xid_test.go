package xid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("sale")
	b := New("sale")

	assert.True(t, strings.HasPrefix(a, "sale-"))
	assert.NotEqual(t, a, b)
}

func TestSaleNumberFormat(t *testing.T) {
	at := time.UnixMilli(1760000000000)
	number := SaleNumber(at)

	assert.True(t, strings.HasPrefix(number, "SALE-1760000000000-"), number)
	assert.Len(t, strings.TrimPrefix(number, "SALE-1760000000000-"), 6)
}
