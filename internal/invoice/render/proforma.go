// Package render produces the proforma invoice PDF.
package render

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/smallbiznis/creditd/internal/invoice/domain"
)

// Renderer turns a draft invoice into a printable document.
type Renderer interface {
	RenderProforma(invoice *domain.Invoice) ([]byte, error)
}

type marotoRenderer struct{}

func NewRenderer() Renderer {
	return &marotoRenderer{}
}

func (r *marotoRenderer) RenderProforma(invoice *domain.Invoice) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Proforma Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Tenant: "+invoice.TenantID, props.Text{Top: 4}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 8}),
			text.New(fmt.Sprintf("Billing period: %s to %s",
				invoice.BillingPeriodStart.Format("2006-01-02"),
				invoice.BillingPeriodEnd.Format("2006-01-02"),
			), props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range invoice.Lines {
		m.AddRow(12,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(2, line.Quantity.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.UnitPrice.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.TotalPrice.String(), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, invoice.TotalAmount.String()+" "+invoice.Currency, props.Text{
			Style: fontstyle.Bold,
			Size:  9,
			Align: align.Right,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
