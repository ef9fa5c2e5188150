package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

type lookupResponse struct {
	Found    bool              `json:"found"`
	Customer *customerResponse `json:"customer,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// lookupCustomer answers whether a phone already belongs to a customer so
// the order form can prefill name and address.
func (h *Handler) lookupCustomer(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if err := validation.Var("phone", phone, "required,len=11,numeric"); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := h.customers.Lookup(r.Context(), phone)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeJSON(w, http.StatusNotFound, lookupResponse{Message: "no customer with this phone number"})
		return
	case err != nil:
		handleError(w, r, err)
		return
	}
	resp := toCustomer(*c)
	writeJSON(w, http.StatusOK, lookupResponse{Found: true, Customer: &resp})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	var verr validation.Error
	f := customer.Filter{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", &verr),
		Offset: queryInt(r, "offset", &verr),
	}
	if err := verr.Err(); err != nil {
		handleError(w, r, err)
		return
	}
	list, total, err := h.customers.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(list, total, toCustomer))
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomer(*c))
}

type customerUpdateRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"max=500"`
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req customerUpdateRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := h.customers.Update(r.Context(), id, customer.UpdateRequest{Name: req.Name, Address: req.Address})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomer(*c))
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.customers.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
