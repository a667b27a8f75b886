package web

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

var _ = Describe("Submission", func() {
	var (
		ctx        context.Context
		log        *callLog
		store      *mockStore
		reporter   *mockReporter
		alerts     []string
		metrics    *Metrics
		submission *Submission
	)

	png := File{Name: "file.png", ContentType: "image/png", Data: []byte("png data")}
	xml := File{Name: "file.xml", ContentType: "text/xml", Data: []byte("<xml/>")}

	BeforeEach(func() {
		ctx = context.Background()
		log = &callLog{}
		store = newMockStore(log)
		reporter = &mockReporter{}
		alerts = nil
		metrics = NewMetrics(prometheus.NewRegistry())

		var err error
		submission, err = NewSubmission(session.User{Type: session.TypeEmployee, Email: "a@a"}, SubmissionDeps{
			Store: store,
			Navigator: NavigatorFunc(func(pathname string) {
				log.add("navigate:" + pathname)
			}),
			Alerter: AlerterFunc(func(message string) {
				alerts = append(alerts, message)
			}),
			Errors:  reporter,
			Metrics: metrics,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewSubmission", func() {
		It("refuses a user without email", func() {
			_, err := NewSubmission(session.User{Type: session.TypeEmployee}, SubmissionDeps{
				Store:     store,
				Navigator: NavigatorFunc(func(string) {}),
				Alerter:   AlerterFunc(func(string) {}),
			})
			Expect(err).To(MatchError(session.ErrNoUser))
		})

		It("requires its collaborators", func() {
			_, err := NewSubmission(session.User{Email: "a@a"}, SubmissionDeps{Store: store})
			Expect(err).To(HaveOccurred())
		})

		It("starts idle", func() {
			Expect(submission.State()).To(Equal(StateIdle))
			Expect(submission.Key()).To(BeEmpty())
			Expect(submission.FileURL()).To(BeEmpty())
		})
	})

	Describe("SelectFile", func() {
		It("stages an image with the user email", func() {
			sel := submission.SelectFile(Idle(), png)

			Expect(sel.Kind()).To(Equal(SelectionStaged))
			Expect(sel.Valid()).To(BeTrue())
			Expect(sel.Err()).NotTo(HaveOccurred())
			Expect(sel.FileName()).To(Equal("file.png"))
			Expect(sel.Upload()).To(Equal(&bill.Upload{
				FileName:    "file.png",
				ContentType: "image/png",
				Data:        []byte("png data"),
				Email:       "a@a",
			}))
			Expect(submission.State()).To(Equal(StateFileStaged))
			Expect(alerts).To(BeEmpty())
			Expect(log.all()).To(BeEmpty())
		})

		It("accepts extensions in any case", func() {
			sel := submission.SelectFile(Idle(), File{Name: "SCAN.JPEG", Data: []byte("x")})
			Expect(sel.Valid()).To(BeTrue())
			Expect(sel.Upload().ContentType).To(Equal("image/jpeg"))
		})

		It("rejects other formats with a single alert", func() {
			sel := submission.SelectFile(Idle(), xml)

			Expect(sel.Kind()).To(Equal(SelectionInvalid))
			Expect(sel.Valid()).To(BeFalse())
			Expect(sel.Err()).To(MatchError(bill.ErrUnsupportedFormat))
			Expect(sel.FileName()).To(BeEmpty())
			Expect(sel.Upload()).To(BeNil())
			Expect(alerts).To(Equal([]string{InvalidFormatMessage}))
			Expect(submission.State()).To(Equal(StateIdle))
			Expect(log.all()).To(BeEmpty())
		})

		It("keeps the previously staged receipt after a rejected file", func() {
			staged := submission.SelectFile(Idle(), png)
			sel := submission.SelectFile(staged, xml)

			Expect(sel.Kind()).To(Equal(SelectionInvalid))
			Expect(sel.Upload()).To(BeIdenticalTo(staged.Upload()))
			Expect(sel.FileName()).To(Equal("file.png"))
			Expect(submission.State()).To(Equal(StateFileStaged))
			Expect(alerts).To(HaveLen(1))
		})

		It("keeps a resumed staged state after a rejected file", func() {
			staged := submission.SelectFile(Idle(), png)

			next, err := NewSubmission(session.User{Email: "a@a"}, SubmissionDeps{
				Store:     store,
				Navigator: NavigatorFunc(func(string) {}),
				Alerter:   AlerterFunc(func(string) {}),
			})
			Expect(err).NotTo(HaveOccurred())
			next.resume(submission.State())

			next.SelectFile(staged, xml)
			Expect(next.State()).To(Equal(StateFileStaged))
		})

		It("counts selections by result", func() {
			submission.SelectFile(Idle(), png)
			submission.SelectFile(Idle(), xml)
			submission.SelectFile(Idle(), xml)

			Expect(testutil.ToFloat64(metrics.fileSelections.WithLabelValues("staged"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.fileSelections.WithLabelValues("invalid"))).To(Equal(2.0))
		})
	})

	Describe("Submit", func() {
		form := Form{
			Type:       "Transports",
			Name:       "Vol Paris Londres",
			Amount:     "348",
			Date:       "2022-03-14",
			VAT:        "70",
			Pct:        "",
			Commentary: "séminaire",
		}

		It("uploads, then updates, then navigates to the list", func() {
			sel := submission.SelectFile(Idle(), png)

			next, err := submission.Submit(ctx, sel, form)
			Expect(err).NotTo(HaveOccurred())

			Expect(log.all()).To(Equal([]string{"create", "update:key-1", "navigate:" + RouteBills}))
			Expect(store.uploads).To(ConsistOf(sel.Upload()))
			Expect(store.updated["key-1"]).To(Equal(&bill.Bill{
				Email:      "a@a",
				Type:       "Transports",
				Name:       "Vol Paris Londres",
				Amount:     348,
				Date:       "2022-03-14",
				VAT:        "70",
				Pct:        20,
				Commentary: "séminaire",
				FileURL:    strPtr("/api/bills/key-1/file"),
				FileName:   strPtr("file.png"),
				Status:     bill.StatusPending,
			}))

			Expect(next.Kind()).To(Equal(SelectionIdle))
			Expect(next.Upload()).To(BeNil())
			Expect(submission.State()).To(Equal(StateIdle))
			Expect(submission.Key()).To(Equal("key-1"))
			Expect(submission.FileURL()).To(Equal("/api/bills/key-1/file"))
			Expect(reporter.reported()).To(BeEmpty())
			Expect(testutil.ToFloat64(metrics.submissions.WithLabelValues("persisted"))).To(Equal(1.0))
		})

		It("submits the receipt kept after a rejected file", func() {
			staged := submission.SelectFile(Idle(), png)
			sel := submission.SelectFile(staged, xml)

			_, err := submission.Submit(ctx, sel, form)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.uploads).To(HaveLen(1))
			Expect(store.uploads[0].FileName).To(Equal("file.png"))
		})

		It("does nothing without a staged receipt", func() {
			next, err := submission.Submit(ctx, Idle(), form)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.Kind()).To(Equal(SelectionIdle))
			Expect(log.all()).To(BeEmpty())
			Expect(submission.State()).To(Equal(StateIdle))
			Expect(testutil.ToFloat64(metrics.submissions.WithLabelValues("skipped"))).To(Equal(1.0))
		})

		It("does nothing after a rejected first file", func() {
			sel := submission.SelectFile(Idle(), xml)

			_, err := submission.Submit(ctx, sel, form)
			Expect(err).NotTo(HaveOccurred())
			Expect(log.all()).To(BeEmpty())
		})

		It("reports an upload failure without updating nor navigating", func() {
			store.createErr = errStore
			sel := submission.SelectFile(Idle(), png)

			next, err := submission.Submit(ctx, sel, form)
			Expect(err).To(MatchError(errStore))
			Expect(err.Error()).To(ContainSubstring("uploading receipt"))

			Expect(log.all()).To(Equal([]string{"create"}))
			Expect(reporter.reported()).To(HaveLen(1))
			Expect(errors.Is(reporter.reported()[0], errStore)).To(BeTrue())
			Expect(submission.State()).To(Equal(StateSubmitting))
			Expect(next.Upload()).To(BeIdenticalTo(sel.Upload()))
			Expect(testutil.ToFloat64(metrics.storeErrors.WithLabelValues("upload"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.submissions.WithLabelValues("failed"))).To(Equal(1.0))
		})

		It("reports an update failure without navigating", func() {
			store.updateErr = errStore
			sel := submission.SelectFile(Idle(), png)

			_, err := submission.Submit(ctx, sel, form)
			Expect(err).To(MatchError(errStore))
			Expect(err.Error()).To(ContainSubstring("saving bill key-1"))

			Expect(log.all()).To(Equal([]string{"create", "update:key-1"}))
			Expect(reporter.reported()).To(HaveLen(1))
			Expect(submission.State()).To(Equal(StateUploaded))
			Expect(submission.Key()).To(Equal("key-1"))
			Expect(testutil.ToFloat64(metrics.storeErrors.WithLabelValues("update"))).To(Equal(1.0))
		})
	})

	Describe("Form.Bill", func() {
		DescribeTable("pct",
			func(pct string, expected int) {
				Expect(Form{Pct: pct}.Bill("a@a").Pct).To(Equal(expected))
			},
			Entry("empty", "", 20),
			Entry("not a number", "abc", 20),
			Entry("zero", "0", 20),
			Entry("number", "15", 15),
			Entry("leading number", "15abc", 15),
		)

		DescribeTable("amount",
			func(amount string, expected int) {
				Expect(Form{Amount: amount}.Bill("a@a").Amount).To(Equal(expected))
			},
			Entry("integer", "348", 348),
			Entry("decimal", "12.5", 12),
			Entry("empty", "", 0),
			Entry("not a number", "abc", 0),
			Entry("negative", "-5", -5),
			Entry("too large", "99999999999999999999", math.MaxInt),
			Entry("too small", "-99999999999999999999", math.MinInt),
		)

		It("builds a pending bill for the email", func() {
			b := Form{Type: "Transports", Date: "2022-03-14"}.Bill("a@a")
			Expect(b.Email).To(Equal("a@a"))
			Expect(b.Status).To(Equal(bill.StatusPending))
			Expect(b.FileURL).To(BeNil())
			Expect(b.FileName).To(BeNil())
		})
	})

	Describe("State", func() {
		It("has a readable name", func() {
			Expect(StateFileStaged.String()).To(Equal("file_staged"))
			Expect(State(42).String()).To(Equal("state(42)"))
		})
	})
})
