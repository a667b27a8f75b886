package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

// maxReceiptSize bounds receipt uploads from the new bill form
const maxReceiptSize = int64(50 << 20)

type loginPage struct {
	Email string
	Error string
}

type newBillPage struct {
	User         session.User
	ExpenseTypes []string
	State        string
	StagedName   string
	FileClass    string
	Alerts       []string
}

// render writes a page, answering 500 when the template fails
func render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf strings.Builder
	if err := renderPage(&buf, name, data); err != nil {
		slog.Error("Error rendering page", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	io.WriteString(w, buf.String())
}

// follow redirects to the view a component navigated to, if any
func follow(w http.ResponseWriter, r *http.Request, nav *pageNav) bool {
	if nav.path == "" {
		return false
	}
	http.Redirect(w, r, nav.path, http.StatusSeeOther)
	return true
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleLoginPage serves the login form
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, "login.html", loginPage{})
}

// handleLogin stores the employee in the session and shows their bills
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, http.StatusBadRequest, "login.html", loginPage{Error: "Formulaire invalide"})
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	if email == "" {
		render(w, http.StatusBadRequest, "login.html", loginPage{Error: "Veuillez saisir votre email"})
		return
	}

	if err := s.sessions.Login(w, session.User{Type: session.TypeEmployee, Email: email}); err != nil {
		slog.Error("Error creating session", "email", email, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("Employee logged in", "email", email)
	http.Redirect(w, r, RouteBills, http.StatusSeeOther)
}

// handleLogout drops the session and any staged receipt
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, err := s.sessions.FromRequest(r); err == nil {
		s.drafts.set(user.Email, Idle(), StateIdle)
	}
	s.sessions.Logout(w)
	http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
}

// handleBills renders the bill list
func (s *Server) handleBills(w http.ResponseWriter, r *http.Request, user session.User) {
	s.renderBills(w, r, user, "")
}

// handleReceipt renders the bill list with the receipt of one bill open
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request, user session.User) {
	s.renderBills(w, r, user, r.PathValue("key"))
}

func (s *Server) renderBills(w http.ResponseWriter, r *http.Request, user session.User, openKey string) {
	bills, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	presenter := NewListPresenter(user, &pageNav{})

	var modal *Modal
	if openKey != "" {
		var clicked *bill.Bill
		for _, b := range bills {
			if b.ID == openKey {
				clicked = b
				break
			}
		}
		if clicked == nil {
			http.Error(w, "Bill not found", http.StatusNotFound)
			return
		}
		m := presenter.OnEyeIconClick(clicked)
		modal = &m
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf strings.Builder
	if err := presenter.Render(&buf, bills, modal); err != nil {
		slog.Error("Error rendering bills", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, buf.String())
}

// handleNewBillClick opens the bill creation view
func (s *Server) handleNewBillClick(w http.ResponseWriter, r *http.Request, user session.User) {
	nav := &pageNav{}
	NewListPresenter(user, nav).OnNewBillClick()
	follow(w, r, nav)
}

func (s *Server) newBillPage(user session.User, d draft, alerts []string) newBillPage {
	sel := d.sel
	page := newBillPage{
		User:         user,
		ExpenseTypes: ExpenseTypes,
		State:        d.state.String(),
		StagedName:   sel.FileName(),
		Alerts:       alerts,
	}
	switch sel.Kind() {
	case SelectionStaged:
		page.FileClass = "blue-border"
	case SelectionInvalid:
		page.FileClass = "is-invalid"
	}
	return page
}

// newSubmission picks up the user's submission where the previous request left it
func (s *Server) newSubmission(user session.User, d draft, nav Navigator, alerts Alerter) (*Submission, error) {
	submission, err := NewSubmission(user, SubmissionDeps{
		Store:     s.store,
		Navigator: nav,
		Alerter:   alerts,
		Errors:    s.reporter,
		Metrics:   s.metrics,
	})
	if err != nil {
		return nil, err
	}
	submission.resume(d.state)
	return submission, nil
}

// handleNewBill renders the new bill form with the current staging state
func (s *Server) handleNewBill(w http.ResponseWriter, r *http.Request, user session.User) {
	render(w, http.StatusOK, "new_bill.html", s.newBillPage(user, s.drafts.get(user.Email), nil))
}

// handleSelectFile stages the receipt picked on the new bill form
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request, user session.User) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize)
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			http.Error(w, "No file provided", http.StatusBadRequest)
			return
		}
		slog.Error("Error getting file from form", "error", err)
		http.Error(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		http.Error(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	current := s.drafts.get(user.Email)
	alerts := &pageAlerts{}
	submission, err := s.newSubmission(user, current, &pageNav{}, alerts)
	if err != nil {
		slog.Error("Error starting submission", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sel := submission.SelectFile(current.sel, File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	next := draft{sel: sel, state: submission.State()}
	s.drafts.set(user.Email, next.sel, next.state)

	if err := sel.Err(); err != nil {
		slog.Info("Receipt rejected", "email", user.Email, "state", next.state, "error", err)
	}
	render(w, http.StatusOK, "new_bill.html", s.newBillPage(user, next, alerts.messages))
}

// handleSubmit uploads the staged receipt and saves the bill
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, user session.User) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	current := s.drafts.get(user.Email)
	nav := &pageNav{}
	alerts := &pageAlerts{}
	submission, err := s.newSubmission(user, current, nav, alerts)
	if err != nil {
		slog.Error("Error starting submission", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	form := Form{
		Type:       r.PostFormValue("type"),
		Name:       r.PostFormValue("name"),
		Amount:     r.PostFormValue("amount"),
		Date:       r.PostFormValue("date"),
		VAT:        r.PostFormValue("vat"),
		Pct:        r.PostFormValue("pct"),
		Commentary: r.PostFormValue("commentary"),
	}

	// Store failures were reported by the submission; the form is shown again as is
	sel, _ := submission.Submit(r.Context(), current.sel, form)
	next := draft{sel: sel, state: submission.State()}
	s.drafts.set(user.Email, next.sel, next.state)

	slog.Debug("Submission handled",
		"email", user.Email,
		"state", next.state,
		"key", submission.Key(),
		"file_url", submission.FileURL(),
	)

	if follow(w, r, nav) {
		return
	}
	render(w, http.StatusOK, "new_bill.html", s.newBillPage(user, next, alerts.messages))
}
