package handler

import (
	"net/http"

	"github.com/xenking/tailor-orders/internal/domain/shop"
)

type shopRequest struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=20"`
}

func (req shopRequest) input() shop.Input {
	return shop.Input{Code: req.Code, Name: req.Name, Address: req.Address, Phone: req.Phone}
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.shops.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(shops, len(shops), toShop))
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var req shopRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.shops.Create(r.Context(), req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShop(*s))
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.shops.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShop(*s))
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req shopRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.shops.Update(r.Context(), id, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShop(*s))
}

func (h *Handler) deleteShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.shops.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
