package services

import (
	"bytes"
	"encoding/json"
	"testing"

	"saascribe-platform/internal/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportTranscript(t *testing.T) {
	h := newHarness(t)
	h.addDocument(t, "alice", "doc-1", submarineText)
	h.seedQuestions(t, "alice", "doc-1", 2)
	svc := NewExportService(h.docs, h.history)
	ctx := userCtx("alice")

	t.Run("json", func(t *testing.T) {
		out, err := svc.ExportTranscript(ctx, "doc-1", "")
		require.NoError(t, err)
		assert.Equal(t, "doc-1_chat.json", out.Filename)

		var data TranscriptExport
		require.NoError(t, json.Unmarshal(out.Data, &data))
		assert.Equal(t, 4, data.TotalRecords)
		assert.Equal(t, 2, data.Questions)
		assert.Equal(t, "doc-1.pdf", data.DocumentName)
	})

	t.Run("xlsx", func(t *testing.T) {
		out, err := svc.ExportTranscript(ctx, "doc-1", FormatXLSX)
		require.NoError(t, err)
		assert.Equal(t, "doc-1_chat.xlsx", out.Filename)

		f, err := excelize.OpenReader(bytes.NewReader(out.Data))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Chat Messages")
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, []string{"#", "Role", "Message", "Failed", "Timestamp"}, rows[0])
		assert.Equal(t, "human", rows[1][1])

		questions, err := f.GetCellValue("Summary", "B5")
		require.NoError(t, err)
		assert.Equal(t, "2", questions)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := svc.ExportTranscript(ctx, "doc-1", "csv")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("foreign document", func(t *testing.T) {
		_, err := svc.ExportTranscript(userCtx("bob"), "doc-1", FormatJSON)
		assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
	})
}
