// Package pdf renders card invoice statements with maroto.
package pdf

import (
	"context"
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/fatura/internal/invoice/domain"
	"go.uber.org/zap"
)

const dateLayout = "02/01/2006"

type Renderer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Renderer {
	return &Renderer{log: log.Named("pdf.renderer")}
}

// AsStatementRenderer exposes the renderer to the invoice service.
func AsStatementRenderer(r *Renderer) invoicedomain.StatementRenderer { return r }

func (r *Renderer) RenderStatement(ctx context.Context, statement invoicedomain.Statement) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	invoice := statement.Invoice

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, fmt.Sprintf("%s statement %02d/%d", invoice.CardName, invoice.Month, invoice.Year), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New("Status: "+string(invoice.Status), props.Text{Top: 0}),
			text.New("Closing date: "+formatDate(invoice.ClosingDate), props.Text{Top: 4}),
			text.New("Due date: "+formatDate(invoice.DueDate), props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Charges: "+money(invoice.Totals.Charges), props.Text{Top: 0, Align: align.Right}),
			text.New("Payments: "+money(invoice.Totals.Payments), props.Text{Top: 4, Align: align.Right}),
			text.New("Balance: "+money(invoice.Totals.Balance), props.Text{Top: 8, Align: align.Right, Style: fontstyle.Bold}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Charges", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
	)
	m.AddRow(8,
		text.NewCol(2, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Installment", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Center}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, charge := range statement.Charges {
		installment := ""
		if charge.InstallmentsTotal > 1 {
			installment = fmt.Sprintf("%d/%d", charge.InstallmentNumber, charge.InstallmentsTotal)
		}
		m.AddRow(7,
			text.NewCol(2, charge.Date.Format(dateLayout), props.Text{Size: 9}),
			text.NewCol(6, charge.Description, props.Text{Size: 9}),
			text.NewCol(2, installment, props.Text{Size: 9, Align: align.Center}),
			text.NewCol(2, money(charge.TotalAmount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if len(statement.Payments) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Payments", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
		)
		for _, payment := range statement.Payments {
			m.AddRow(7,
				text.NewCol(2, payment.Date.Format(dateLayout), props.Text{Size: 9}),
				text.NewCol(8, payment.Kind, props.Text{Size: 9}),
				text.NewCol(2, money(payment.Amount.Neg()), props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(2, money(decimal.Max(invoice.Totals.Balance, decimal.Zero)), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 3}),
	)

	doc, err := m.Generate()
	if err != nil {
		r.log.Error("render statement failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		return nil, err
	}
	return doc.GetBytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
