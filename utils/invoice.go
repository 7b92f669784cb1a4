package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"go-shop/models"
)

// InvoiceService projects orders into printable PDF documents. Rendered
// invoices are written to durable storage and streamed to the requester in
// the same pass.
type InvoiceService struct {
	dir string
}

// NewInvoiceService creates an invoice renderer storing files under dir.
func NewInvoiceService(dir string) *InvoiceService {
	return &InvoiceService{dir: dir}
}

// FileName returns the stored file name for an order's invoice.
func (s *InvoiceService) FileName(orderID string) string {
	return "invoice-" + orderID + ".pdf"
}

// RenderAndStore renders the invoice for order, writing the PDF both to the
// invoice directory and to w.
func (s *InvoiceService) RenderAndStore(order models.Order, w io.Writer) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create invoice directory: %w", err)
	}

	file, err := os.Create(filepath.Join(s.dir, s.FileName(order.ID.Hex())))
	if err != nil {
		return fmt.Errorf("create invoice file: %w", err)
	}
	defer file.Close()

	return s.Render(order, io.MultiWriter(file, w))
}

// Render writes the invoice PDF for order to w. The grand total is
// recomputed from the order's product snapshots.
func (s *InvoiceService) Render(order models.Order, w io.Writer) error {
	separator := strings.Repeat("-", 46)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 26)
	pdf.Cell(0, 12, "Invoice")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 18)
	pdf.Cell(0, 10, separator)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 13)
	for _, item := range order.Items {
		line := fmt.Sprintf("%s - (%d) x $%s",
			item.Product.Title,
			item.Quantity,
			item.Product.Price().StringFixed(2),
		)
		pdf.Cell(0, 8, line)
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "", 18)
	pdf.Cell(0, 10, separator)
	pdf.Ln(12)
	pdf.Cell(0, 10, fmt.Sprintf("Total Price: $%s", order.Total().StringFixed(2)))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}
	return nil
}
