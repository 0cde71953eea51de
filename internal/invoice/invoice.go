package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Renderer builds printable PDF invoices. The QR code on each invoice
// links to the order tracking endpoint.
type Renderer struct {
	baseURL string
}

func NewRenderer(publicBaseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (r *Renderer) TrackingURL(orderID string) string {
	return fmt.Sprintf("%s/api/user/orders/%s/track", r.baseURL, orderID)
}

func (r *Renderer) Render(o *domain.Order) ([]byte, error) {
	qrPNG, err := qrcode.Encode(r.TrackingURL(o.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+o.ID, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, "Order: "+o.ID)
	pdf.Ln(6)
	pdf.Cell(0, 6, "Date: "+o.OrderDate.Format("2006-01-02 15:04 MST"))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s / payment %s", o.Status, o.PaymentStatus))
	pdf.Ln(10)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 12, 35, 35, false, imageOpts, 0, r.TrackingURL(o.ID))

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Ship to")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 11)
	for _, line := range addressLines(o.ShippingAddress) {
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(6)

	widths := []float64{95, 20, 35, 35}
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Item", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, it := range o.Items {
		name := it.Name
		if it.Size != "" {
			name += " (" + it.Size + ")"
		}
		pdf.CellFormat(widths[0], 7, tr(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, it.UnitPrice.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, it.UnitPrice.Times(it.Quantity).String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total ("+o.Currency+")", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, o.TotalAmount.String(), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func addressLines(a domain.Address) []string {
	lines := []string{a.FullName, a.Line1}
	if a.Line2 != "" {
		lines = append(lines, a.Line2)
	}
	city := strings.TrimSpace(strings.Join([]string{a.City, a.State, a.PostalCode}, " "))
	lines = append(lines, city, a.Country)
	if a.Phone != "" {
		lines = append(lines, a.Phone)
	}
	return lines
}
