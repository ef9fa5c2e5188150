package handler

import (
	"net/http"

	"github.com/xenking/tailor-orders/internal/domain/validation"
)

type productTypeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.ListTypes(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(types, len(types), toProductType))
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var req productTypeRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	t, err := h.catalog.CreateType(r.Context(), req.Name, req.Description)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductType(*t))
}

func (h *Handler) getType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	t, err := h.catalog.GetType(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductType(*t))
}

func (h *Handler) updateType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req productTypeRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	t, err := h.catalog.UpdateType(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductType(*t))
}

func (h *Handler) deleteType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.catalog.DeleteType(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type productSizeRequest struct {
	ProductTypeID int64  `json:"product_type_id" validate:"required,gt=0"`
	Name          string `json:"name" validate:"required,max=50"`
}

// sizeRenameRequest is the update body; a size never moves between types.
type sizeRenameRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (h *Handler) listSizes(w http.ResponseWriter, r *http.Request) {
	var verr validation.Error
	typeID := queryInt(r, "product_type_id", &verr)
	if err := verr.Err(); err != nil {
		handleError(w, r, err)
		return
	}
	sizes, err := h.catalog.ListSizes(r.Context(), int64(typeID))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(sizes, len(sizes), toProductSize))
}

func (h *Handler) createSize(w http.ResponseWriter, r *http.Request) {
	var req productSizeRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.catalog.CreateSize(r.Context(), req.ProductTypeID, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductSize(*s))
}

func (h *Handler) getSize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.catalog.GetSize(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductSize(*s))
}

func (h *Handler) updateSize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req sizeRenameRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.catalog.UpdateSize(r.Context(), id, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductSize(*s))
}

func (h *Handler) deleteSize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.catalog.DeleteSize(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
