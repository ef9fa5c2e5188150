package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/catalog"
	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/shop"
)

const dateLayout = "2006-01-02"

// money renders a decimal as a JSON number with exactly two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type shopResponse struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Address           string    `json:"address"`
	Phone             string    `json:"phone"`
	NextOrderSequence int64     `json:"next_order_sequence"`
	CreatedAt         time.Time `json:"created_at"`
}

func toShop(s shop.Shop) shopResponse {
	return shopResponse{
		ID:                s.ID,
		Code:              s.Code,
		Name:              s.Name,
		Address:           s.Address,
		Phone:             s.Phone,
		NextOrderSequence: s.NextOrderSequence,
		CreatedAt:         s.CreatedAt,
	}
}

type productTypeResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toProductType(t catalog.ProductType) productTypeResponse {
	return productTypeResponse{ID: t.ID, Name: t.Name, Description: t.Description}
}

type productSizeResponse struct {
	ID            int64  `json:"id"`
	ProductTypeID int64  `json:"product_type_id"`
	Name          string `json:"name"`
}

func toProductSize(s catalog.ProductSize) productSizeResponse {
	return productSizeResponse{ID: s.ID, ProductTypeID: s.ProductTypeID, Name: s.Name}
}

type customerResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func toCustomer(c customer.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Phone: c.Phone, Address: c.Address}
}

type permissionResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toPermission(p access.Permission) permissionResponse {
	return permissionResponse{ID: p.ID, Name: p.Name}
}

type roleResponse struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Permissions []permissionResponse `json:"permissions"`
}

func toRole(r access.Role) roleResponse {
	out := roleResponse{ID: r.ID, Name: r.Name, Permissions: make([]permissionResponse, len(r.Permissions))}
	for i, p := range r.Permissions {
		out.Permissions[i] = toPermission(p)
	}
	return out
}

type userResponse struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Roles       []roleResponse       `json:"roles"`
	Permissions []permissionResponse `json:"permissions"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toUser(u access.User) userResponse {
	out := userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Roles:       make([]roleResponse, len(u.Roles)),
		Permissions: make([]permissionResponse, len(u.Permissions)),
		CreatedAt:   u.CreatedAt,
	}
	for i, r := range u.Roles {
		out.Roles[i] = toRole(r)
	}
	for i, p := range u.Permissions {
		out.Permissions[i] = toPermission(p)
	}
	return out
}
