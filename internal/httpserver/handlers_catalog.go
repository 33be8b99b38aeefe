package httpserver

import (
	"net/http"
	"strconv"

	"topup-store/internal/catalog"
)

func (a *api) categories(w http.ResponseWriter, r *http.Request) {
	out, err := a.Catalog.Categories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) products(w http.ResponseWriter, r *http.Request) {
	out, err := a.Catalog.Products(r.Context(), r.URL.Query().Get("category_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) paymentMethods(w http.ResponseWriter, r *http.Request) {
	out, err := a.Catalog.PaymentMethods(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) shopping(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	out, err := a.Catalog.Shopping(r.Context(), catalog.Query{
		Text:     q.Get("q"),
		Currency: q.Get("currency"),
		MaxPrice: q.Get("max_price"),
		Limit:    limit,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) exchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := a.Lifecycle.ActiveRate(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thb_to_mmk": rate})
}
