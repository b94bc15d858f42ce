package infra

// pdf.go — Guest receipt generation using go-pdf/fpdf.
// Produces a compact A7-size receipt: hotel name header, booking reference,
// settlement type and method, amount paid, remaining balance, and the
// transaction reference for upstream reconciliation.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"frontdesk/internal/model"

	"github.com/go-pdf/fpdf"
)

// ReceiptData carries everything the receipt renders. Decoupled from the gorm
// models so the worker can build it from the attempt and upstream confirmation.
type ReceiptData struct {
	HotelName        string
	BookingID        string
	SettlementType   model.SettlementType
	PaymentMethod    model.PaymentMethod
	Amount           string // formatted, e.g. "750.00"
	RemainingBalance string
	TransactionRef   string
	PaidAt           string // display format
}

// GenerateReceiptPDF writes the receipt to storagePath (created if needed) and
// returns the absolute path of the generated file.
func GenerateReceiptPDF(data ReceiptData, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("receipt_%s.pdf", data.TransactionRef)
	filePath := filepath.Join(storagePath, fileName)

	// A7 ≈ 74mm × 105mm — matches the front-desk thermal printer paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8 // total margins = 8mm

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, data.HotelName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Official Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// ── Booking info ──────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, "Booking "+data.BookingID, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, data.PaidAt, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Payment lines ─────────────────────────────────────────────────────────
	labelW := contentW * 0.55
	valueW := contentW * 0.45

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(labelW, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, value, "", 1, "R", false, 0, "")
	}

	line("Payment type:", settlementLabel(data.SettlementType))
	line("Method:", strings.ReplaceAll(string(data.PaymentMethod), "_", " "))

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(labelW, 6, "AMOUNT PAID:", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 6, "PHP "+data.Amount, "", 1, "R", false, 0, "")

	line("Remaining balance:", "PHP "+data.RemainingBalance)

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(contentW, 4, "Ref: "+data.TransactionRef, "", 1, "L", false, 0, "")

	// ── Footer ────────────────────────────────────────────────────────────────
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for staying with us!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func settlementLabel(t model.SettlementType) string {
	switch t {
	case model.SettlementDownPayment:
		return "Down payment"
	case model.SettlementPartial:
		return "Partial payment"
	case model.SettlementBalance:
		return "Balance settlement"
	default:
		return string(t)
	}
}
