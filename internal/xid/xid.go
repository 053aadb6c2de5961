package xid

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// SaleNumber returns the human-readable receipt number printed for a sale.
func SaleNumber(at time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("SALE-%d-%s", at.UnixMilli(), strings.ToUpper(hex.EncodeToString(id[:3])))
}
