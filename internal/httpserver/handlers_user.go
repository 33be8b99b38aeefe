package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"topup-store/internal/auth"
	"topup-store/internal/lifecycle"
	"topup-store/internal/repo"
)

type orderView struct {
	repo.Order
	DisplayStatus repo.Status `json:"display_status"`
}

type depositView struct {
	repo.DepositRequest
	DisplayStatus repo.Status `json:"display_status"`
}

func orderViews(in []repo.Order) []orderView {
	out := make([]orderView, len(in))
	for i, o := range in {
		out[i] = orderView{Order: o, DisplayStatus: lifecycle.DisplayStatus(o.Status)}
	}
	return out
}

func depositViews(in []repo.DepositRequest) []depositView {
	out := make([]depositView, len(in))
	for i, d := range in {
		out[i] = depositView{DepositRequest: d, DisplayStatus: lifecycle.DisplayStatus(d.Status)}
	}
	return out
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// listFilter reads the optional status and limit query parameters. No limit
// lists every row.
func listFilter(r *http.Request) (repo.ListFilter, error) {
	q := r.URL.Query()
	var f repo.ListFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		f.Status = repo.Status(strings.ToLower(raw))
		if !lifecycle.KnownStatus(f.Status) {
			return f, &lifecycle.ValidationError{Code: "invalid_status", Message: fmt.Sprintf("unknown status %q", raw)}
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return f, &lifecycle.ValidationError{Code: "invalid_limit", Message: "limit must be a positive integer"}
		}
		f.Limit = limit
	}
	return f, nil
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	isAdmin, err := a.Auth.IsAdmin(r.Context(), p.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.Accounts.GetProfile(r.Context(), p.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       p.UserID,
		"email":    p.Email,
		"is_admin": isAdmin,
		"profile":  profile,
	})
}

type profileRequest struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	Language *string `json:"language"`
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Username != nil {
		u := strings.TrimSpace(*req.Username)
		if !auth.ValidUsername(u) {
			a.fail(w, r, &lifecycle.ValidationError{Code: "invalid_username", Message: "username must be 3-32 letters, digits, dots or underscores"})
			return
		}
		req.Username = &u
	}
	if req.Language != nil {
		switch *req.Language {
		case "en", "my":
		default:
			a.fail(w, r, &lifecycle.ValidationError{Code: "invalid_language", Message: "language must be en or my"})
			return
		}
	}
	profile, err := a.Accounts.UpdateProfile(r.Context(), principal(r).UserID, repo.ProfileUpdate{
		Username: req.Username,
		FullName: req.FullName,
		Language: req.Language,
	})
	if errors.Is(err, repo.ErrConflict) {
		err = auth.ErrUsernameTaken
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *api) wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := a.Accounts.GetWallet(r.Context(), principal(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rate, err := a.Lifecycle.ActiveRate(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":        wallet,
		"exchange_rate": rate,
		"thb_in_mmk":    wallet.BalanceTHB.Mul(rate).Round(0),
		"total_in_mmk":  wallet.BalanceMMK.Add(wallet.BalanceTHB.Mul(rate)).Round(0),
	})
}

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.OrderInput
	if err := decodeJSON(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.Lifecycle.CreateOrder(r.Context(), principal(r).UserID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderView{Order: *o, DisplayStatus: lifecycle.DisplayStatus(o.Status)})
}

const multipartOverhead = 1 << 20

func (a *api) createDeposit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxReceiptBytes+multipartOverhead)
	if err := r.ParseMultipartForm(a.MaxReceiptBytes + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "receipt_too_large",
				fmt.Sprintf("receipt exceeds %d bytes", a.MaxReceiptBytes))
			return
		}
		a.fail(w, r, &lifecycle.ValidationError{Code: "invalid_form", Message: err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := lifecycle.DepositInput{
		Amount:   r.FormValue("amount"),
		Currency: r.FormValue("currency"),
	}
	file, header, err := r.FormFile("receipt")
	switch {
	case err == nil:
		defer file.Close()
		ct, err := receiptContentType(file, header)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		in.Receipt = &lifecycle.Receipt{
			Filename:    header.Filename,
			ContentType: ct,
			Size:        header.Size,
			Body:        file,
		}
	case !errors.Is(err, http.ErrMissingFile):
		a.fail(w, r, &lifecycle.ValidationError{Code: "invalid_form", Message: err.Error()})
		return
	}

	d, err := a.Lifecycle.CreateDeposit(r.Context(), principal(r).UserID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, depositView{DepositRequest: *d, DisplayStatus: lifecycle.DisplayStatus(d.Status)})
}

// receiptContentType trusts a declared image type and sniffs anything else.
func receiptContentType(f multipart.File, h *multipart.FileHeader) (string, error) {
	ct := h.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind receipt: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}

func (a *api) ownOrders(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f.UserID = principal(r).UserID
	out, err := a.Lifecycle.ListOrders(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViews(out))
}

func (a *api) ownDeposits(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f.UserID = principal(r).UserID
	out, err := a.Lifecycle.ListDeposits(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositViews(out))
}

func (a *api) orderReceipt(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	o, err := a.Lifecycle.OwnOrder(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !lifecycle.IsFulfilled(o.Status) {
		writeError(w, http.StatusConflict, "not_approved", "receipts are issued for approved orders only")
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		if profile, err := a.Accounts.GetProfile(r.Context(), p.UserID); err == nil {
			lang = profile.Language
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.txt"`, shortID(o.ID)))
	_, _ = io.WriteString(w, renderReceipt(o, lang))
}
