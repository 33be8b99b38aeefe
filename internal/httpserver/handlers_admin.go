package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"topup-store/internal/catalog"
	"topup-store/internal/lifecycle"
	"topup-store/internal/repo"
)

type moderationRequest struct {
	Note string `json:"note"`
}

func actionStatus(action string) (repo.Status, bool) {
	switch action {
	case "approve":
		return repo.StatusApproved, true
	case "reject":
		return repo.StatusRejected, true
	}
	return "", false
}

// moderationInput reads the optional note; an empty body is allowed.
func moderationInput(r *http.Request) (repo.Status, string, error) {
	to, ok := actionStatus(chi.URLParam(r, "action"))
	if !ok {
		return "", "", repo.ErrNotFound
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return "", "", &lifecycle.ValidationError{Code: "invalid_json", Message: err.Error()}
	}
	var req moderationRequest
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return "", "", &lifecycle.ValidationError{Code: "invalid_json", Message: err.Error()}
		}
	}
	return to, req.Note, nil
}

func (a *api) adminOrders(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Lifecycle.ListOrders(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViews(out))
}

func (a *api) adminDeposits(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Lifecycle.ListDeposits(r.Context(), f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositViews(out))
}

func (a *api) moderateOrder(w http.ResponseWriter, r *http.Request) {
	to, note, err := moderationInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.Lifecycle.ModerateOrder(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), to, note)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViews([]repo.Order{*o})[0])
}

func (a *api) moderateDeposit(w http.ResponseWriter, r *http.Request) {
	to, note, err := moderationInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.Lifecycle.ModerateDeposit(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), to, note)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositViews([]repo.DepositRequest{*d})[0])
}

type rateRequest struct {
	THBToMMK string `json:"thb_to_mmk"`
}

func (a *api) updateExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	rate, err := a.Lifecycle.UpdateExchangeRate(r.Context(), principal(r).UserID, req.THBToMMK)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.Catalog.Reload(r.Context()); err != nil {
		a.logger.Warn("catalog cache reload after rate change failed", "error", err)
	}
	writeJSON(w, http.StatusOK, rate)
}

func (a *api) adminShopping(w http.ResponseWriter, r *http.Request) {
	out, err := a.Catalog.AdminShopping(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) createShopping(w http.ResponseWriter, r *http.Request) {
	var in catalog.ShoppingInput
	if err := decodeJSON(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Catalog.CreateShopping(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *api) updateShopping(w http.ResponseWriter, r *http.Request) {
	var in catalog.ShoppingInput
	if err := decodeJSON(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Catalog.UpdateShopping(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) deleteShopping(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteShopping(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	n, err := a.Catalog.Reload(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "keys": n})
}
