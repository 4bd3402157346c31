package printing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		Id:             "inv-1",
		Number:         "INV-000042",
		Type:           models.InvoiceTypeSale,
		Status:         models.InvoicePartiallyRefunded,
		Customer:       &models.Customer{Name: "Ada <Lovelace>"},
		Subtotal:       dec("120"),
		Discount:       dec("10"),
		TaxRate:        dec("0.2"),
		TaxTotal:       dec("22"),
		Total:          dec("132"),
		AmountPaid:     dec("100"),
		AmountCredited: dec("11"),
		Balance:        dec("21"),
		CreatedAt:      time.Date(2024, 5, 3, 10, 30, 0, 0, time.UTC),
		Items: []models.InvoiceItem{
			{Description: "Screen protector", Quantity: 2, UnitPrice: dec("10"), LineTotal: dec("20"), ReturnedQuantity: 1},
			{Description: "Battery swap", Quantity: 1, UnitPrice: dec("100"), LineTotal: dec("100")},
		},
	}
}

func TestFormatter(t *testing.T) {
	f := NewFormatter("gbp")
	assert.Contains(t, f.Money(dec("1234.5")), "234.50")
	assert.Contains(t, f.Money(dec("1234.5")), "£")
	assert.Equal(t, "20%", f.Percent(dec("0.2")))
	assert.Equal(t, "Partially Refunded", f.Label("partially_refunded"))

	// unknown codes fall back to pounds
	assert.Contains(t, NewFormatter("???").Money(dec("1")), "£")
}

func TestRenderReceipt(t *testing.T) {
	shop := config.ShopConfig{Name: "Fix-It Phones", Address: "1 High St", Currency: "GBP"}
	out, err := RenderReceipt(ReceiptTemplate(NewFormatter(shop.Currency)), shop, sampleInvoice())
	require.NoError(t, err)

	html := string(out)
	for _, want := range []string{"Fix-It Phones", "INV-000042", "Battery swap", "(1 returned)", "Credited", "Balance due", "21.00", "20%", "132.00", "Partially Refunded"} {
		assert.Contains(t, html, want)
	}
	assert.Contains(t, html, "Ada &lt;Lovelace&gt;", "customer names are escaped")

	inv := sampleInvoice()
	inv.Customer = nil
	out, err = RenderReceipt(ReceiptTemplate(NewFormatter("GBP")), shop, inv)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Walk-in Customer")
}

type fakeRenderer struct {
	html []byte
	err  error
}

func (f *fakeRenderer) RenderPDF(_ context.Context, html []byte) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

type memStorage struct {
	objects map[string][]byte
}

func (m *memStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memStorage) PresignGet(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key + "?sig=1", nil
}

func TestPrinter(t *testing.T) {
	shop := config.ShopConfig{Name: "Fix-It Phones", Currency: "GBP"}
	renderer := &fakeRenderer{}
	storage := &memStorage{objects: map[string][]byte{}}
	p := NewPrinter(shop, renderer, storage, nil)
	inv := sampleInvoice()

	pdf, err := p.PDF(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Contains(t, string(renderer.html), "INV-000042")

	url, err := p.StorePDF(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/invoices/2024/05/INV-000042.pdf?sig=1", url)
	assert.Contains(t, storage.objects, "invoices/2024/05/INV-000042.pdf")

	renderer.err = errors.New("chrome gone")
	_, err = p.PDF(context.Background(), inv)
	assert.ErrorContains(t, err, "chrome gone")

	_, err = NewPrinter(shop, renderer, nil, nil).StorePDF(context.Background(), inv)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestChromedpRenderer_RejectsEmptyHTML(t *testing.T) {
	r := &ChromedpRenderer{timeout: time.Second}
	_, err := r.RenderPDF(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyHTML)
}
