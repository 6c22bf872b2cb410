package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
	"planora-backend/internal/domain"
	"planora-backend/internal/service"
)

func (h SessionHandler) exportRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roster, err := h.Sessions.Roster(r.Context(), id, sessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	buf, err := buildRosterExcel(roster)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("build roster workbook: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="session-%d-roster.xlsx"`, sessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func buildRosterExcel(roster *service.Roster) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Roster"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	sess := roster.Session
	when := "recurring"
	if sess.Date != nil {
		when = sess.Date.Format(dateLayout)
	} else if sess.DayOfWeek != nil {
		when = "every " + domain.WeekdayName(*sess.DayOfWeek)
	}
	_ = f.SetCellValue(sheet, "A1", roster.Class.Title)
	_ = f.SetCellValue(sheet, "A2", fmt.Sprintf("%s %s-%s (%s)", when, sess.StartTime, sess.EndTime, sess.Status))
	_ = f.SetCellValue(sheet, "A3", fmt.Sprintf("%d of %d places taken", len(sess.EnrolledClients), roster.Class.MaxCapacity))

	const headerRow = 5
	header := []string{"Client ID", "Name", "Phone", "List", "Status", "Catch-up", "Since"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, headerRow)
		_ = f.SetCellValue(sheet, cell, v)
	}

	row := headerRow + 1
	writeRow := func(values []any) {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}
	for _, e := range sess.EnrolledClients {
		name, phone := rosterContact(roster, e.ClientID)
		catchUp := ""
		if e.IsCatchUp {
			catchUp = "yes"
		}
		writeRow([]any{e.ClientID, name, phone, "enrolled", string(e.Status), catchUp, e.EnrollmentDate.Format("2006-01-02 15:04")})
	}
	for _, wl := range sess.Waitlist {
		name, phone := rosterContact(roster, wl.ClientID)
		writeRow([]any{wl.ClientID, name, phone, "waitlist", "", "", wl.AddedDate.Format("2006-01-02 15:04")})
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 16)
	_ = f.SetColWidth(sheet, "D", "F", 12)
	_ = f.SetColWidth(sheet, "G", "G", 18)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A5", "G5", style)
	title, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	_ = f.SetCellStyle(sheet, "A1", "A1", title)

	return f.WriteToBuffer()
}

func rosterContact(roster *service.Roster, clientID int64) (string, string) {
	c, ok := roster.Clients[clientID]
	if !ok {
		return "", ""
	}
	return c.FullName(), c.Phone
}
