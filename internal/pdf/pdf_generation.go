package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator — интерфейс (удобно мокать в тестах)
type Generator interface {
	GenerateVerificationReport(data ReportData) (string, error)
}

// ReportGenerator — реализация
type ReportGenerator struct {
	RootDir  string // корень хранения, например "./files"
	FontPath string // путь до TTF, например "assets/fonts/DejaVuSans.ttf"
	fontName string // внутреннее имя шрифта в PDF
}

type BindingRow struct {
	TelegramUserID int64
	RobloxUsername string
	RobloxID       int64
	GroupRank      string
	VerifiedAt     time.Time
}

type HistoryRow struct {
	TelegramUserID int64
	RobloxUsername string
	RobloxID       int64
	VerifiedAt     time.Time
	SupersededAt   time.Time
}

type ReportData struct {
	GeneratedAt time.Time
	Verified    int
	Pending     int
	History     int
	Bindings    []BindingRow
	Recent      []HistoryRow // последние вытеснения, свежие первыми
	Filename    string       // имя файла (без путей); если пусто — сгенерируем
}

func NewReportGenerator(rootDir, fontPath string) *ReportGenerator {
	return &ReportGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
		fontName: "DejaVu",
	}
}

// GenerateVerificationReport — сводный отчёт по привязкам, A4.
// Возвращает абсолютный путь к записанному файлу.
func (g *ReportGenerator) GenerateVerificationReport(data ReportData) (string, error) {
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("verifications_%s.pdf", data.GeneratedAt.Format("20060102_1504"))
	}
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Отчёт по привязкам", false)
	pdf.SetAuthor("Robolink", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	g.addUTF8Font(pdf)
	pdf.AddPage()

	// ===== Заголовок
	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "ОТЧЁТ ПО ПРИВЯЗКАМ", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 12)
	sub := fmt.Sprintf("сформирован %s", data.GeneratedAt.Format("02.01.2006 15:04"))
	pdf.CellFormat(0, 7, sub, "", 1, "C", false, 0, "")
	g.hr(pdf)

	pdf.Ln(3)

	// ===== Сводка
	g.sectionTitle(pdf, "Сводка")
	g.kvLine(pdf, "Подтверждено", fmt.Sprintf("%d", data.Verified))
	g.kvLine(pdf, "В ожидании", fmt.Sprintf("%d", data.Pending))
	g.kvLine(pdf, "Записей истории", fmt.Sprintf("%d", data.History))
	pdf.Ln(2)
	g.hr(pdf)

	// ===== Текущие привязки
	g.sectionTitle(pdf, "Текущие привязки")
	if len(data.Bindings) == 0 {
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, "Подтверждённых привязок пока нет.", "", "L", false)
	} else {
		// шапка таблицы
		pdf.SetFont(g.fontName, "B", 10)
		pdf.CellFormat(32, 7, "Telegram ID", "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, "Roblox", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, "Roblox ID", "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, "Ранг", "1", 0, "L", false, 0, "")
		pdf.CellFormat(38, 7, "Подтверждено", "1", 1, "L", false, 0, "")

		pdf.SetFont(g.fontName, "", 10)
		for _, row := range data.Bindings {
			rank := row.GroupRank
			if rank == "" {
				rank = "-"
			}
			pdf.CellFormat(32, 6, fmt.Sprintf("%d", row.TelegramUserID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, row.RobloxUsername, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.RobloxID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, rank, "1", 0, "L", false, 0, "")
			pdf.CellFormat(38, 6, row.VerifiedAt.Format("02.01.2006 15:04"), "1", 1, "L", false, 0, "")
		}
	}

	// ===== Последние перепривязки
	if len(data.Recent) > 0 {
		pdf.Ln(4)
		g.sectionTitle(pdf, "Последние перепривязки")

		pdf.SetFont(g.fontName, "B", 10)
		pdf.CellFormat(32, 7, "Telegram ID", "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, "Прежний Roblox", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, "Roblox ID", "1", 0, "L", false, 0, "")
		pdf.CellFormat(58, 7, "Вытеснена", "1", 1, "L", false, 0, "")

		pdf.SetFont(g.fontName, "", 10)
		for _, row := range data.Recent {
			pdf.CellFormat(32, 6, fmt.Sprintf("%d", row.TelegramUserID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, row.RobloxUsername, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.RobloxID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(58, 6, row.SupersededAt.Format("02.01.2006 15:04"), "1", 1, "L", false, 0, "")
		}
	}

	// ===== Нумерация страниц
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Стр. %d/{nb}", pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// ===== helpers =====

func (g *ReportGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReportGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *ReportGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename) // безопасность
	return filepath.Abs(filepath.Join(g.RootDir, filename))
}

func (g *ReportGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	// AddUTF8Font принимает путь до TTF
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}
