package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Export is a rendered transcript ready to be sent as an attachment.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

type TranscriptExport struct {
	ExportDate   time.Time        `json:"export_date"`
	DocumentID   string           `json:"document_id"`
	DocumentName string           `json:"document_name"`
	TotalRecords int              `json:"total_records"`
	Questions    int              `json:"questions"`
	Messages     []TranscriptLine `json:"messages"`
}

type TranscriptLine struct {
	Role      models.Role `json:"role"`
	Message   string      `json:"message"`
	Failed    bool        `json:"failed,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ExportService renders a document's conversation as JSON or a spreadsheet.
type ExportService struct {
	docs    rag.DocumentSource
	history rag.HistoryStore
	now     func() time.Time
}

func NewExportService(docs rag.DocumentSource, history rag.HistoryStore) *ExportService {
	return &ExportService{docs: docs, history: history, now: time.Now}
}

func (es *ExportService) ExportTranscript(ctx context.Context, documentID, format string) (*Export, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatXLSX {
		return nil, ErrUnsupportedFormat
	}

	doc, err := es.docs.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	history, err := es.history.LoadHistory(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	data := &TranscriptExport{
		ExportDate:   es.now().UTC(),
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		TotalRecords: len(history),
		Questions:    countHuman(history),
		Messages:     make([]TranscriptLine, 0, len(history)),
	}
	for _, m := range history {
		data.Messages = append(data.Messages, TranscriptLine{
			Role:      m.Role,
			Message:   m.Message,
			Failed:    m.Failed,
			Timestamp: m.CreatedAt,
		})
	}

	base := strings.TrimSuffix(doc.Name, ".pdf") + "_chat"
	if format == FormatXLSX {
		b, err := es.exportExcel(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Export{
			Filename:    base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        b,
		}, nil
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return &Export{Filename: base + ".json", ContentType: "application/json", Data: b}, nil
}

func (es *ExportService) exportExcel(ctx context.Context, data *TranscriptExport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.FromContext(ctx).Warn("error closing Excel file", "error", err)
		}
	}()

	sheetName := "Chat Messages"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"#", "Role", "Message", "Failed", "Timestamp"}
	for i, header := range headers {
		f.SetCellValue(sheetName, fmt.Sprintf("%c1", 'A'+i), header)
	}

	for rowIdx, msg := range data.Messages {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), rowIdx+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), string(msg.Role))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), msg.Message)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), msg.Failed)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), msg.Timestamp.Format("2006-01-02 15:04:05"))
	}
	f.SetColWidth(sheetName, "C", "C", 80)

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Document", data.DocumentName},
		{"Document ID", data.DocumentID},
		{"Export Date", data.ExportDate.Format(time.RFC3339)},
		{"Messages", data.TotalRecords},
		{"Questions", data.Questions},
	}
	for i, r := range rows {
		f.SetCellValue(summary, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(summary, fmt.Sprintf("B%d", i+1), r[1])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
