package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

// InvalidFormatMessage is the alert shown for receipts that are not images
const InvalidFormatMessage = "Le format de votre fichier n'est pas pris en charge.\nSeuls les .jpg, .jpeg, .png sont acceptés."

// State is where a submission stands in its lifecycle
type State int

const (
	StateIdle State = iota
	StateFileStaged
	StateSubmitting
	StateUploaded
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileStaged:
		return "file_staged"
	case StateSubmitting:
		return "submitting"
	case StateUploaded:
		return "uploaded"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SelectionKind tells what the last file selection produced
type SelectionKind int

const (
	SelectionIdle SelectionKind = iota
	SelectionStaged
	SelectionInvalid
)

// Selection is the outcome of a file selection and the input of Submit.
// An invalid selection keeps the upload staged before it, if any.
type Selection struct {
	kind   SelectionKind
	upload *bill.Upload
	reason error
}

// Idle is the selection before any file was picked
func Idle() Selection {
	return Selection{}
}

func (s Selection) Kind() SelectionKind {
	return s.kind
}

// Upload returns the staged payload, nil when nothing was staged
func (s Selection) Upload() *bill.Upload {
	return s.upload
}

// FileName returns the name of the staged file, empty when nothing was staged
func (s Selection) FileName() string {
	if s.upload == nil {
		return ""
	}
	return s.upload.FileName
}

// Valid reports whether the last selected file had an accepted format
func (s Selection) Valid() bool {
	return s.kind == SelectionStaged
}

// Err returns why the last selection was rejected
func (s Selection) Err() error {
	return s.reason
}

// File is a file picked by the user
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Form holds the raw values of the new bill form
type Form struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

// parseLeadingInt reads the integer at the start of s, ignoring what follows it.
// "15abc" is 15; "abc" is an error. Out of range values clamp to the int bounds.
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("no leading integer in %q", s)
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		// Atoi already returns the clamped bound
		return n, nil
	}
	return n, err
}

// Bill builds a pending bill for email from the form values.
// An empty, non-numeric or zero pct falls back to bill.DefaultPct.
func (f Form) Bill(email string) *bill.Bill {
	amount, err := parseLeadingInt(f.Amount)
	if err != nil {
		amount = 0
	}
	pct, err := parseLeadingInt(f.Pct)
	if err != nil || pct == 0 {
		pct = bill.DefaultPct
	}

	return &bill.Bill{
		Email:      email,
		Type:       f.Type,
		Name:       f.Name,
		Amount:     amount,
		Date:       f.Date,
		VAT:        f.VAT,
		Pct:        pct,
		Commentary: f.Commentary,
		Status:     bill.StatusPending,
	}
}

// ErrorReporter receives failures of the store calls made on submit
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// LogReporter reports errors to the default logger
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Error submitting bill", "error", err)
}

// SubmissionDeps are the collaborators of a Submission
type SubmissionDeps struct {
	Store     bill.Store
	Navigator Navigator
	Alerter   Alerter
	Errors    ErrorReporter
	Metrics   *Metrics
}

// Submission drives one new bill from file selection to persistence
type Submission struct {
	user    session.User
	store   bill.Store
	nav     Navigator
	alerts  Alerter
	errs    ErrorReporter
	metrics *Metrics

	state   State
	fileURL string
	key     string
}

// NewSubmission creates a submission for user. A user without email is refused with session.ErrNoUser.
func NewSubmission(user session.User, deps SubmissionDeps) (*Submission, error) {
	if user.Email == "" {
		return nil, session.ErrNoUser
	}
	if deps.Store == nil || deps.Navigator == nil || deps.Alerter == nil {
		return nil, errors.New("submission needs a store, a navigator and an alerter")
	}
	if deps.Errors == nil {
		deps.Errors = LogReporter{}
	}

	return &Submission{
		user:    user,
		store:   deps.Store,
		nav:     deps.Navigator,
		alerts:  deps.Alerter,
		errs:    deps.Errors,
		metrics: deps.Metrics,
	}, nil
}

// State returns the current lifecycle state
func (s *Submission) State() State {
	return s.state
}

// resume continues a submission from the state an earlier request left it in
func (s *Submission) resume(state State) {
	s.state = state
}

// FileURL returns the receipt URL assigned by the store, once uploaded
func (s *Submission) FileURL() string {
	return s.fileURL
}

// Key returns the bill key assigned by the store, once uploaded
func (s *Submission) Key() string {
	return s.key
}

// SelectFile checks the extension of f and stages it with the user's email.
// A rejected file raises an alert and keeps what current had staged.
func (s *Submission) SelectFile(current Selection, f File) Selection {
	if !bill.IsAcceptedImage(f.Name) {
		s.metrics.fileSelected("invalid")
		s.alerts.Alert(InvalidFormatMessage)
		if current.upload == nil {
			s.state = StateIdle
		}
		return Selection{
			kind:   SelectionInvalid,
			upload: current.upload,
			reason: fmt.Errorf("%w: %s", bill.ErrUnsupportedFormat, f.Name),
		}
	}

	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = bill.ContentTypeFor(f.Name)
	}

	upload := &bill.Upload{
		FileName:    f.Name,
		ContentType: contentType,
		Data:        f.Data,
		Email:       s.user.Email,
	}

	s.metrics.fileSelected("staged")
	s.state = StateFileStaged
	return Selection{kind: SelectionStaged, upload: upload}
}

// Submit uploads the staged receipt, then saves the bill under the key the
// store assigned, then navigates back to the list. Without a staged receipt
// it does nothing. Store failures are reported and returned; the submission
// stays in the state it reached.
func (s *Submission) Submit(ctx context.Context, sel Selection, form Form) (Selection, error) {
	upload := sel.Upload()
	if upload == nil {
		slog.DebugContext(ctx, "Submit without staged receipt", "email", s.user.Email)
		s.metrics.submitted("skipped")
		return sel, nil
	}

	b := form.Bill(s.user.Email)
	s.state = StateSubmitting

	result, err := s.store.Create(ctx, upload)
	if err != nil {
		return sel, s.fail(ctx, "upload", fmt.Errorf("uploading receipt: %w", err))
	}
	s.key = result.Key
	s.fileURL = result.FileURL
	s.state = StateUploaded

	fileURL := s.fileURL
	fileName := upload.FileName
	b.FileURL = &fileURL
	b.FileName = &fileName

	if err := s.store.Update(ctx, s.key, b); err != nil {
		return sel, s.fail(ctx, "update", fmt.Errorf("saving bill %s: %w", s.key, err))
	}
	s.state = StatePersisted
	s.metrics.submitted("persisted")

	s.nav.Navigate(RouteBills)
	s.state = StateIdle
	return Idle(), nil
}

func (s *Submission) fail(ctx context.Context, step string, err error) error {
	s.metrics.storeFailed(step)
	s.metrics.submitted("failed")
	s.errs.Report(ctx, err)
	return err
}
