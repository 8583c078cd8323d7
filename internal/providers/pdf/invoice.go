package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type marotoRenderer struct{}

func New() Renderer {
	return &marotoRenderer{}
}

func (r *marotoRenderer) RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(8, data.ClinicName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Invoice", props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	// Invoice Meta
	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
			text.New("Status: "+data.Status, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Patient: "+data.PatientRef, props.Text{Top: 0}),
			text.New("Doctor: "+data.DoctorRef, props.Text{Top: 4}),
			text.New("Appointment: "+data.AppointmentDate, props.Text{Top: 8}),
			text.New("Modality: "+data.Modality, props.Text{Top: 12}),
		),
	)

	// Table Header
	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Currency", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	m.AddRow(12,
		text.NewCol(8, data.Description, props.Text{Size: 9}),
		text.NewCol(2, data.Currency, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, data.AmountDisplay, props.Text{Size: 9, Align: align.Right}),
	)

	// Footer Totals
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.AmountDisplay, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if data.PaidAt != "" {
		m.AddRow(14,
			col.New(6).Add(
				text.New("Paid via "+data.PaymentMethod+" on "+data.PaidAt, props.Text{
					Size: 9,
					Top:  4,
				}),
			),
			col.New(6),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
