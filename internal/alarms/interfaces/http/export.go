package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alarmapp "alarmboard/internal/alarms/application"
	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/observability/metrics"
)

// HistoryRow is one line of a card's merged history: its alarm occurrences
// and the operator comments on its reference, in chronological order.
type HistoryRow struct {
	Instant int64
	Kind    string
	Text    string
	Value   string
	Status  string
}

// ExportHandler serves card history downloads and the board report.
type ExportHandler struct {
	orchestrator *alarmapp.Orchestrator
	store        CommentStore
	logger       *log.Logger
}

// NewExportHandler constructs an export handler.
func NewExportHandler(orchestrator *alarmapp.Orchestrator, store CommentStore, logger *log.Logger) (*ExportHandler, error) {
	if orchestrator == nil {
		return nil, errors.New("export handler: nil orchestrator")
	}
	if store == nil {
		return nil, errors.New("export handler: nil store")
	}
	if logger == nil {
		return nil, errors.New("export handler: nil logger")
	}
	return &ExportHandler{orchestrator: orchestrator, store: store, logger: logger}, nil
}

// HandleHistoryCSV handles GET /api/v1/history/export.csv.
func (h *ExportHandler) HandleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	h.serveHistory(w, r, "csv")
}

// HandleHistoryXLSX handles GET /api/v1/history/export.xlsx.
func (h *ExportHandler) HandleHistoryXLSX(w http.ResponseWriter, r *http.Request) {
	h.serveHistory(w, r, "xlsx")
}

func (h *ExportHandler) serveHistory(w http.ResponseWriter, r *http.Request, format string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()
	card, ok := h.findCard(r.URL.Query().Get("key"))
	if !ok {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "unknown card key", http.StatusNotFound)
		return
	}
	rows := h.historyFor(r, card)

	var (
		payload []byte
		err     error
	)
	switch format {
	case "csv":
		payload, err = BuildHistoryCSV(card, rows)
	default:
		payload, err = BuildHistoryXLSX(card, rows)
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		h.logger.Printf("export: %s build failed: %v", format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("history_%s.%s", sanitizeFilename(card.ItemReference), format)
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))
}

// HandleReportPDF handles GET /api/v1/report.pdf: the whole board as a
// printable document.
func (h *ExportHandler) HandleReportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	sortKey := alarms.ParseSortKey(q.Get("sort"))
	ascending := !strings.EqualFold(q.Get("dir"), "desc")
	statuses := splitQueryList(q.Get("statuses"))
	cards, statusByKey := h.orchestrator.View(filter, sortKey, ascending, statuses)

	payload, err := BuildBoardPDF(cards, statusByKey)
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(started))
		h.logger.Printf("export: pdf build failed: %v", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="alarm_board.pdf"`)
	_, _ = w.Write(payload)
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(started))
}

func (h *ExportHandler) findCard(key string) (alarms.Card, bool) {
	snapshot := h.orchestrator.Snapshot()
	if snapshot == nil || key == "" {
		return alarms.Card{}, false
	}
	for _, card := range snapshot.Cards {
		if card.Key == key {
			return card, true
		}
	}
	return alarms.Card{}, false
}

// historyFor merges the card's occurrences with its reference's comments,
// oldest first.
func (h *ExportHandler) historyFor(r *http.Request, card alarms.Card) []HistoryRow {
	snapshot := h.orchestrator.Snapshot()

	var rows []HistoryRow
	for _, event := range card.Events {
		instant := snapshot.Lookup.OccurrenceInstant(event)
		rows = append(rows, HistoryRow{
			Instant: instant,
			Kind:    "occurrence",
			Text:    event.Message,
			Value:   event.ValueText(),
		})
	}

	version := h.orchestrator.VersionForReference(card.ItemReference)
	comments, err := h.store.List(r.Context(), version, card.ItemReference)
	if err != nil {
		h.logger.Printf("export: comment fetch for %s failed: %v", card.ItemReference, err)
	}
	for _, comment := range comments {
		rows = append(rows, HistoryRow{
			Instant: alarms.ParseTimestamp(comment.CreatedAt),
			Kind:    "comment",
			Text:    comment.Text,
			Status:  comment.Status,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Instant < rows[j].Instant })
	return rows
}

// BuildHistoryCSV renders the history with semicolon separators, CRLF line
// ends and a UTF-8 BOM, which is what desktop spreadsheet tools expect.
func BuildHistoryCSV(card alarms.Card, rows []HistoryRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(&buf)
	writer.Comma = ';'
	writer.UseCRLF = true

	if err := writer.Write([]string{"When", "Kind", "Text", "Value", "Status"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			alarms.FormatDisplay(row.Instant),
			row.Kind,
			row.Text,
			row.Value,
			row.Status,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders the history as a workbook.
func BuildHistoryXLSX(card alarms.Card, rows []HistoryRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "history"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", card.Name)
	_ = f.SetCellValue(sheet, "B1", card.ItemReference)
	_ = f.SetCellValue(sheet, "A3", "When")
	_ = f.SetCellValue(sheet, "B3", "Kind")
	_ = f.SetCellValue(sheet, "C3", "Text")
	_ = f.SetCellValue(sheet, "D3", "Value")
	_ = f.SetCellValue(sheet, "E3", "Status")
	for i, row := range rows {
		line := i + 4
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), alarms.FormatDisplay(row.Instant))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.Kind)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.Text)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), row.Value)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", line), row.Status)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBoardPDF renders the current card list as a table.
func BuildBoardPDF(cards []alarms.Card, statusByKey map[string]string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alarm Board")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Reference", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(18, 6, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Inserted", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Source", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, card := range cards {
		value := strings.TrimSpace(card.Value + " " + card.Units)
		pdf.CellFormat(45, 6, clipCell(card.Name, 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, clipCell(card.ItemReference, 40), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, clipCell(value, 20), "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, card.Priority.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, alarms.FormatDisplay(card.LatestInstant), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, statusByKey[card.Key], "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, clipCell(card.SourceName, 20), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clipCell(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-2]) + ".."
}

func sanitizeFilename(value string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_", "\"", "_")
	cleaned := replacer.Replace(value)
	if cleaned == "" {
		return "card"
	}
	return cleaned
}
