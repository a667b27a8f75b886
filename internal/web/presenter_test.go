package web

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

var _ = Describe("ListPresenter", func() {
	var (
		user      session.User
		navigated []string
		presenter *ListPresenter
	)

	BeforeEach(func() {
		user = session.User{Type: session.TypeEmployee, Email: "a@a"}
		navigated = nil
		presenter = NewListPresenter(user, NavigatorFunc(func(pathname string) {
			navigated = append(navigated, pathname)
		}))
	})

	render := func(bills []*bill.Bill, modal *Modal) string {
		var buf strings.Builder
		Expect(presenter.Render(&buf, bills, modal)).To(Succeed())
		return buf.String()
	}

	Describe("Rows", func() {
		It("orders bills from latest to earliest", func() {
			rows := presenter.Rows(fixtureBills())

			dates := make([]string, 0, len(rows))
			for _, row := range rows {
				dates = append(dates, row.Date)
			}
			Expect(dates).To(Equal([]string{"2004-04-04", "2003-03-03", "2002-02-02", "2001-01-01"}))
		})

		It("does not reorder the given slice", func() {
			bills := fixtureBills()
			presenter.Rows(bills)
			Expect(bills[0].ID).To(Equal("47qAXb6fIm2zOKkLzMro"))
			Expect(bills[1].ID).To(Equal("BeKy5Mo4jkmdfPGYpTxZ"))
		})

		It("formats the amount and links the receipt preview", func() {
			rows := presenter.Rows(fixtureBills())
			Expect(rows[1]).To(Equal(Row{
				Key:        "UIUZtnPQvnbFnB0ozvJh",
				Type:       "Services en ligne",
				Name:       "test3",
				Date:       "2003-03-03",
				Amount:     "300 €",
				Status:     "accepted",
				FileURL:    "https://test.storage.tld/facture-client.png",
				PreviewURL: "/employee/bills/UIUZtnPQvnbFnB0ozvJh/receipt",
			}))
		})

		It("leaves FileURL empty for bills without receipt", func() {
			rows := presenter.Rows([]*bill.Bill{{ID: "x", Date: "2020-01-01"}})
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].FileURL).To(BeEmpty())
		})
	})

	Describe("Render", func() {
		It("shows the title and the new bill button without any row for no bills", func() {
			page := render(nil, nil)

			Expect(page).To(ContainSubstring("Mes notes de frais"))
			Expect(page).To(ContainSubstring(`data-testid="btn-new-bill"`))
			Expect(strings.Count(page, `data-testid="bill"`)).To(Equal(0))
		})

		It("renders one row with every cell per bill", func() {
			page := render(fixtureBills(), nil)

			Expect(strings.Count(page, `data-testid="bill"`)).To(Equal(4))
			Expect(cells(page, "type")).To(HaveLen(4))
			Expect(cells(page, "name")).To(HaveLen(4))
			Expect(cells(page, "date")).To(HaveLen(4))
			Expect(cells(page, "amount")).To(HaveLen(4))
			Expect(cells(page, "status")).To(HaveLen(4))
			Expect(cells(page, "icon-eye")).To(HaveLen(4))
		})

		It("renders the rows from latest to earliest", func() {
			page := render(fixtureBills(), nil)

			Expect(cells(page, "date")).To(Equal([]string{"2004-04-04", "2003-03-03", "2002-02-02", "2001-01-01"}))
			Expect(cells(page, "type")[1]).To(Equal("Services en ligne"))
			Expect(cells(page, "name")[1]).To(Equal("test3"))
			Expect(cells(page, "amount")[1]).To(Equal("300 €"))
			Expect(cells(page, "status")[1]).To(Equal("accepted"))
		})

		It("renders the dialog closed by default", func() {
			page := render(fixtureBills(), nil)

			Expect(page).To(ContainSubstring(`class="modal fade" id="modaleFile"`))
			Expect(page).To(ContainSubstring(ReceiptCaption))
			Expect(page).NotTo(ContainSubstring(`data-testid="modal-image"`))
		})

		It("shows the user email in the navigation", func() {
			page := render(nil, nil)
			Expect(cells(page, "user-email")).To(Equal([]string{"a@a"}))
		})
	})

	Describe("OnEyeIconClick", func() {
		It("opens the dialog on the bill receipt", func() {
			bills := fixtureBills()
			modal := presenter.OnEyeIconClick(bills[2])

			Expect(modal).To(Equal(Modal{
				Open:     true,
				Caption:  "Justificatif",
				ImageURL: "https://test.storage.tld/facture-client.png",
			}))

			page := render(bills, &modal)
			Expect(page).To(ContainSubstring(`class="modal fade show" id="modaleFile"`))
			Expect(page).To(ContainSubstring(`src="https://test.storage.tld/facture-client.png"`))
			Expect(page).To(ContainSubstring("Justificatif"))
		})

		It("opens an empty dialog for a bill without receipt", func() {
			modal := presenter.OnEyeIconClick(&bill.Bill{ID: "x"})
			Expect(modal.Open).To(BeTrue())
			Expect(modal.ImageURL).To(BeEmpty())
		})
	})

	Describe("OnNewBillClick", func() {
		It("navigates to the new bill view", func() {
			presenter.OnNewBillClick()
			Expect(navigated).To(Equal([]string{RouteNewBill}))
		})
	})

	Describe("FormatAmount", func() {
		It("suffixes the euro sign", func() {
			Expect(FormatAmount(348)).To(Equal("348 €"))
			Expect(FormatAmount(0)).To(Equal("0 €"))
		})
	})
})
