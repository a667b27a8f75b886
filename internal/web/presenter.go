package web

import (
	"fmt"
	"io"
	"slices"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

// ReceiptCaption is the title of the receipt preview modal
const ReceiptCaption = "Justificatif"

// Row is one rendered bill of the list
type Row struct {
	Key        string
	Type       string
	Name       string
	Date       string
	Amount     string
	Status     string
	FileURL    string
	PreviewURL string
}

// Modal is the receipt preview dialog
type Modal struct {
	Open     bool
	Caption  string
	ImageURL string
}

type billsPage struct {
	User  session.User
	Rows  []Row
	Modal Modal
}

// ListPresenter renders the bill list and handles its actions
type ListPresenter struct {
	user session.User
	nav  Navigator
}

// NewListPresenter creates a presenter for user's bill list
func NewListPresenter(user session.User, nav Navigator) *ListPresenter {
	return &ListPresenter{user: user, nav: nav}
}

// FormatAmount renders an amount the way the list shows it
func FormatAmount(amount int) string {
	return fmt.Sprintf("%d €", amount)
}

// Rows converts bills to rows, most recent date first. bills is not modified.
func (p *ListPresenter) Rows(bills []*bill.Bill) []Row {
	sorted := slices.Clone(bills)
	bill.SortByDateDesc(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, b := range sorted {
		row := Row{
			Key:        b.ID,
			Type:       b.Type,
			Name:       b.Name,
			Date:       b.Date,
			Amount:     FormatAmount(b.Amount),
			Status:     string(b.Status),
			PreviewURL: RouteBills + "/" + b.ID + "/receipt",
		}
		if b.FileURL != nil {
			row.FileURL = *b.FileURL
		}
		rows = append(rows, row)
	}
	return rows
}

// Render writes the list page. modal may be nil for a closed dialog.
func (p *ListPresenter) Render(w io.Writer, bills []*bill.Bill, modal *Modal) error {
	page := billsPage{
		User:  p.user,
		Rows:  p.Rows(bills),
		Modal: Modal{Caption: ReceiptCaption},
	}
	if modal != nil {
		page.Modal = *modal
	}
	return renderPage(w, "bills.html", page)
}

// OnEyeIconClick opens the modal on b's receipt. A bill without receipt gets an empty image.
func (p *ListPresenter) OnEyeIconClick(b *bill.Bill) Modal {
	modal := Modal{Open: true, Caption: ReceiptCaption}
	if b != nil && b.FileURL != nil {
		modal.ImageURL = *b.FileURL
	}
	return modal
}

// OnNewBillClick navigates to the bill creation view
func (p *ListPresenter) OnNewBillClick() {
	p.nav.Navigate(RouteNewBill)
}
