package voucher

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"sharecrop/internal/models"
)

const fontName = "voucher"

// PDFRenderer prints a pickup voucher on an A4 page. The font file must be a
// TrueType font covering the listing and farmer names.
type PDFRenderer struct {
	FontPath string
}

func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{FontPath: fontPath}
}

func (r *PDFRenderer) Render(v Voucher, o models.Order, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont(fontName, r.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont(fontName, "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, "PICKUP VOUCHER")

	pdf.SetY(60)
	addOrderInfo(pdf, v, o)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		if err := addQRCode(pdf, qrCode); err != nil {
			return nil, err
		}
	}

	pdf.SetY(260)
	pdf.SetX(50)
	pdf.Cell(nil, "Show this code to the farmer when you collect your harvest.")

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func addOrderInfo(pdf *gopdf.GoPdf, v Voucher, o models.Order) {
	info := []struct {
		Label string
		Value string
	}{
		{"Code", v.Code},
		{"Field", o.ListingName},
		{"Farmer", o.FarmerName},
		{"Location", o.Location},
		{"Area", fmt.Sprintf("%gm²", o.Quantity)},
		{"Ordered", o.CreatedAt.Format("2006-01-02")},
		{"Issued", v.IssuedAt.Format("2006-01-02 15:04")},
	}
	for _, item := range info {
		if item.Value == "" {
			continue
		}
		pdf.SetX(40)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) error {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		return fmt.Errorf("decode QR code: %w", err)
	}
	if err := pdf.ImageFrom(img, 40, pdf.GetY(), &gopdf.Rect{W: 150, H: 150}); err != nil {
		return fmt.Errorf("draw QR code: %w", err)
	}
	return nil
}
