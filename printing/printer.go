package printing

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/metrics"
	"repairshop-backend/models"

	"go.uber.org/zap"
)

// ErrStorageDisabled is returned by StorePDF when no object storage is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// Printer produces receipts for invoices.
type Printer struct {
	shop     config.ShopConfig
	tpl      *template.Template
	renderer PDFRenderer
	storage  ObjectStorage
	logger   *zap.Logger
}

// NewPrinter wires a printer. renderer and storage may be nil; the matching calls then fail.
func NewPrinter(shop config.ShopConfig, renderer PDFRenderer, storage ObjectStorage, logger *zap.Logger) *Printer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Printer{
		shop:     shop,
		tpl:      ReceiptTemplate(NewFormatter(shop.Currency)),
		renderer: renderer,
		storage:  storage,
		logger:   logger,
	}
}

// HTML renders the receipt of a fully loaded invoice.
func (p *Printer) HTML(invoice *models.Invoice) ([]byte, error) {
	return RenderReceipt(p.tpl, p.shop, invoice)
}

// PDF renders the receipt and prints it to PDF.
func (p *Printer) PDF(ctx context.Context, invoice *models.Invoice) ([]byte, error) {
	if p.renderer == nil {
		return nil, errors.New("pdf renderer is not configured")
	}
	html, err := p.HTML(invoice)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	pdf, err := p.renderer.RenderPDF(ctx, html)
	metrics.ObservePDFRender(time.Since(start))
	if err != nil {
		p.logger.Error("pdf render failed", zap.String("invoice", invoice.Number), zap.Error(err))
		return nil, err
	}
	return pdf, nil
}

// StorePDF renders the PDF, uploads it and returns a presigned download URL.
func (p *Printer) StorePDF(ctx context.Context, invoice *models.Invoice) (string, error) {
	if p.storage == nil {
		return "", ErrStorageDisabled
	}
	pdf, err := p.PDF(ctx, invoice)
	if err != nil {
		return "", err
	}
	key := ObjectKey(invoice)
	if err := p.storage.Put(ctx, key, pdf, "application/pdf"); err != nil {
		return "", err
	}
	p.logger.Info("invoice pdf stored", zap.String("invoice", invoice.Number), zap.String("key", key))
	return p.storage.PresignGet(ctx, key)
}

// ObjectKey is the storage key of an invoice PDF: invoices/2024/05/INV-000123.pdf.
func ObjectKey(invoice *models.Invoice) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", invoice.CreatedAt.UTC().Format("2006/01"), invoice.Number)
}
