package notify

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/foxzi/alumnet/internal/models"
)

// WriteDeliveredCSV writes a one-column CSV ("email") with one row per
// delivered address, newline-terminated
func WriteDeliveredCSV(w io.Writer, report *models.DispatchReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, addr := range report.Delivered {
		if err := cw.Write([]string{addr}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
