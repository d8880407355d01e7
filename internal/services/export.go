package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/recklessbear/rbsite/internal/models"
)

// ExportParticipantsCSV renders the participant table for support use.
// Column names mirror the record store's fields.
func ExportParticipantsCSV(rows []*models.Participant) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"record_id", "full_name", "email", "phone", "device_id", "entry_status", "logo_count", "created_at"})
	for _, p := range rows {
		rec := []string{
			p.RecordID,
			p.FullName,
			p.Email,
			p.Phone,
			p.DeviceID,
			string(p.Status),
			strconv.Itoa(p.LogosFound),
			p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
