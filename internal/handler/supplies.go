package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/service"
	"github.com/mmeshcher/plantshop/internal/validation"
)

type createPlantRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreatePlant добавляет растение в каталог.
func (h *Handler) CreatePlant(w http.ResponseWriter, r *http.Request) {
	var req createPlantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	plant, err := h.service.CreatePlant(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, plant)
}

type createSupplyRequest struct {
	PlantID uuid.UUID       `json:"plantId"`
	Count   int             `json:"count"`
	Price   decimal.Decimal `json:"price"`
	model.Supplier
	ExpirationDate string `json:"expirationDate"`
}

// parseDate принимает дату в виде 2006-01-02 или RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validation.Errorf("malformed date %q", s)
	}
	return t, nil
}

// CreateSupply оприходует поставку.
func (h *Handler) CreateSupply(w http.ResponseWriter, r *http.Request) {
	var req createSupplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	expiration, err := parseDate(req.ExpirationDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	supply, err := h.service.CreateSupply(r.Context(), service.CreateSupplyRequest{
		PlantID:        req.PlantID,
		Count:          req.Count,
		Price:          req.Price,
		Supplier:       req.Supplier,
		ExpirationDate: expiration,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newSupplyResponse(supply))
}

// GetSupply возвращает поставку с контактами поставщика.
func (h *Handler) GetSupply(w http.ResponseWriter, r *http.Request) {
	h.readSupply(w, r, h.service.GetSupply, newSupplyResponse)
}

// GetSupplyInSale возвращает поставку из продажи. Снятая с продажи поставка
// отдаётся как несуществующая.
func (h *Handler) GetSupplyInSale(w http.ResponseWriter, r *http.Request) {
	h.readSupply(w, r, h.service.GetSupplyInSale, newCatalogSupplyResponse)
}

func (h *Handler) readSupply(
	w http.ResponseWriter,
	r *http.Request,
	read func(ctx context.Context, id uuid.UUID) (*model.Supply, error),
	view func(*model.Supply) supplyResponse,
) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	supply, err := read(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view(supply))
}

// GetSuppliesInSale возвращает поставки, выставленные в продажу.
func (h *Handler) GetSuppliesInSale(w http.ResponseWriter, r *http.Request) {
	h.listSupplies(w, r, h.service.GetSuppliesInSale, newCatalogSupplyResponse)
}

// GetAllSupplies возвращает все поставки склада.
func (h *Handler) GetAllSupplies(w http.ResponseWriter, r *http.Request) {
	h.listSupplies(w, r, h.service.GetAllSupplies, newSupplyResponse)
}

func (h *Handler) listSupplies(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context) ([]model.Supply, error),
	view func(*model.Supply) supplyResponse,
) {
	supplies, err := list(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(supplies) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, newSupplyResponses(supplies, view))
}

// GetStockStatistics возвращает остатки склада по растениям.
func (h *Handler) GetStockStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStockStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(stats) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]stockStatResponse, 0, len(stats))
	for _, st := range stats {
		resp = append(resp, stockStatResponse{PlantID: st.PlantID, PlantName: st.PlantName, Count: st.Count})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type cartRequest struct {
	CartItems []struct {
		SupplyID uuid.UUID `json:"supplyId"`
		Count    int       `json:"count"`
	} `json:"cartItems"`
}

// QuoteCart оценивает корзину по текущим ценам поставок в продаже.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lines := make([]service.LineRequest, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		lines = append(lines, service.LineRequest{SupplyID: item.SupplyID, Quantity: item.Count})
	}

	cart, err := h.service.QuoteCart(r.Context(), lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(cart))
}

// PutInSale выставляет поставку в продажу.
func (h *Handler) PutInSale(w http.ResponseWriter, r *http.Request) {
	h.updateSupply(w, r, h.service.PutInSale)
}

// RemoveFromSale снимает поставку с продажи.
func (h *Handler) RemoveFromSale(w http.ResponseWriter, r *http.Request) {
	h.updateSupply(w, r, h.service.RemoveFromSale)
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// UpdateSupplyPrice меняет цену поставки.
func (h *Handler) UpdateSupplyPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.updateSupply(w, r, func(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
		return h.service.UpdateSupplyPrice(ctx, id, req.Price)
	})
}

func (h *Handler) updateSupply(w http.ResponseWriter, r *http.Request, update func(ctx context.Context, id uuid.UUID) (*model.Supply, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	supply, err := update(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSupplyResponse(supply))
}

// UpdateSupplier меняет контакты поставщика.
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req model.Supplier
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.updateSupply(w, r, func(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
		return h.service.UpdateSupplier(ctx, id, req)
	})
}

type expiryDateRequest struct {
	ExpirationDate string `json:"expirationDate"`
}

// UpdateSupplyExpiration меняет срок годности поставки.
func (h *Handler) UpdateSupplyExpiration(w http.ResponseWriter, r *http.Request) {
	var req expiryDateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	date, err := parseDate(req.ExpirationDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.updateSupply(w, r, func(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
		return h.service.UpdateSupplyExpiration(ctx, id, date)
	})
}
