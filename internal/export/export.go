package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gymbook/internal/domain"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter builds xlsx attendance reports for upcoming and past sessions.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger *zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{repo: repo, path: path, logger: logger}
}

// AttendanceReport writes one sheet per day with session rows and
// per-status booking counts, returning the file path.
func (e *Exporter) AttendanceReport(ctx context.Context, from time.Time, days int) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	sessions, err := e.repo.GetUpcomingSessions(ctx, from, days)
	if err != nil {
		return "", fmt.Errorf("error getting sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Посещаемость"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s — %d дней", from.Format("02.01.2006"), days))

	headers := []string{"Дата", "Занятие", "Зал", "Мест", "Записано", "Пришли", "Не пришли", "Отменено"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 3
	for _, session := range sessions {
		bookings, err := e.repo.GetBookingsBySession(ctx, session.ID)
		if err != nil {
			return "", fmt.Errorf("error getting bookings for session %d: %w", session.ID, err)
		}

		counts := map[string]int{}
		for _, b := range bookings {
			counts[b.Status]++
		}

		values := []interface{}{
			session.StartsAt.Format("02.01.2006 15:04"),
			session.Name,
			session.Location,
			session.Capacity,
			session.Enrolled,
			counts[models.StatusAttended],
			counts[models.StatusAbsent],
			counts[models.StatusCancelled],
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "C", 22)

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)
	_ = f.MergeCell(sheetName, "A1", "H1")

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("attendance_%s.xlsx", from.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("attendance report created")
	return filePath, nil
}
