package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mindmate-health/mindmate/internal/export"
	"github.com/mindmate-health/mindmate/internal/model"
)

func TestWriteStressWorkbook(t *testing.T) {
	ts := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	records := []model.StressRecord{
		{ID: 2, User: "ana@gmail.com", Sleep: 4, BP: "150/95", Resp: 22, Heart: 110,
			StressLevel: "HIGH", Score: 9, BPStage: "Stage 1 Hypertension", Advice: "line1\nline2", Timestamp: ts},
		{ID: 1, User: "guest@example.com", Sleep: 8, BP: "115/75", Resp: 16, Heart: 72,
			StressLevel: "OPTIMAL", Score: 0, BPStage: "Normal", Advice: "ok", Timestamp: ts.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteStressWorkbook(&buf, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{export.SheetName}, f.GetSheetList())

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.StressHeader, rows[0])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "ana@gmail.com", rows[1][1])
	assert.Equal(t, "2026-05-04 10:30:00", rows[1][2])
	assert.Equal(t, "HIGH", rows[1][3])
	assert.Equal(t, "150/95", rows[1][5])
	assert.Equal(t, "line1\nline2", rows[1][10])
	assert.Equal(t, "guest@example.com", rows[2][1])
}

func TestWriteStressWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteStressWorkbook(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
