// Package handler exposes the order management API over HTTP using chi.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/catalog"
	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/order"
	"github.com/xenking/tailor-orders/internal/domain/shop"
)

// ShopService is the shop maintenance surface used by the API.
type ShopService interface {
	Create(ctx context.Context, in shop.Input) (*shop.Shop, error)
	Get(ctx context.Context, id int64) (*shop.Shop, error)
	List(ctx context.Context) ([]shop.Shop, error)
	Update(ctx context.Context, id int64, in shop.Input) (*shop.Shop, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogService manages product types and sizes.
type CatalogService interface {
	CreateType(ctx context.Context, name, description string) (*catalog.ProductType, error)
	GetType(ctx context.Context, id int64) (*catalog.ProductType, error)
	ListTypes(ctx context.Context) ([]catalog.ProductType, error)
	UpdateType(ctx context.Context, id int64, name, description string) (*catalog.ProductType, error)
	DeleteType(ctx context.Context, id int64) error

	CreateSize(ctx context.Context, typeID int64, name string) (*catalog.ProductSize, error)
	GetSize(ctx context.Context, id int64) (*catalog.ProductSize, error)
	ListSizes(ctx context.Context, typeID int64) ([]catalog.ProductSize, error)
	UpdateSize(ctx context.Context, id int64, name string) (*catalog.ProductSize, error)
	DeleteSize(ctx context.Context, id int64) error
}

// CustomerService covers lookup by phone and customer maintenance.
type CustomerService interface {
	Lookup(ctx context.Context, phone string) (*customer.Customer, error)
	Get(ctx context.Context, id int64) (*customer.Customer, error)
	List(ctx context.Context, f customer.Filter) ([]customer.Customer, int, error)
	Update(ctx context.Context, id int64, req customer.UpdateRequest) (*customer.Customer, error)
	Delete(ctx context.Context, id int64) error
}

// OrderService is the order workflow.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Update(ctx context.Context, id int64, req order.UpdateRequest) (*order.Order, error)
	AddPayment(ctx context.Context, id int64, in order.PaymentInput, recordedBy int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, id int64, next order.Status) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, int, error)
}

// AccessService authenticates sessions and administers users, roles and
// permissions.
type AccessService interface {
	Login(ctx context.Context, email, password string) (*access.Session, error)
	Authenticate(ctx context.Context, token string) (*access.User, error)

	CreateUser(ctx context.Context, in access.UserInput) (*access.User, error)
	GetUser(ctx context.Context, id int64) (*access.User, error)
	ListUsers(ctx context.Context) ([]access.User, error)
	UpdateUser(ctx context.Context, id int64, in access.UserInput) (*access.User, error)
	DeleteUser(ctx context.Context, actorID, id int64) error

	CreateRole(ctx context.Context, in access.RoleInput) (*access.Role, error)
	GetRole(ctx context.Context, id int64) (*access.Role, error)
	ListRoles(ctx context.Context) ([]access.Role, error)
	UpdateRole(ctx context.Context, id int64, in access.RoleInput) (*access.Role, error)
	DeleteRole(ctx context.Context, id int64) error

	CreatePermission(ctx context.Context, name string) (*access.Permission, error)
	GetPermission(ctx context.Context, id int64) (*access.Permission, error)
	ListPermissions(ctx context.Context) ([]access.Permission, error)
	UpdatePermission(ctx context.Context, id int64, name string) (*access.Permission, error)
	DeletePermission(ctx context.Context, id int64) error
}

// Services bundles the domain services behind the API.
type Services struct {
	Access    AccessService
	Shops     ShopService
	Catalog   CatalogService
	Customers CustomerService
	Orders    OrderService
}

// Handler serves the /api routes.
type Handler struct {
	access    AccessService
	shops     ShopService
	catalog   CatalogService
	customers CustomerService
	orders    OrderService
}

// NewHandler creates a Handler.
func NewHandler(s Services) *Handler {
	return &Handler{
		access:    s.Access,
		shops:     s.Shops,
		catalog:   s.Catalog,
		customers: s.Customers,
		orders:    s.Orders,
	}
}

// Router returns the API mounted under /api. Every route except login
// requires a bearer session; mutating routes also require a permission.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.me)

			r.Route("/shops", func(r chi.Router) {
				r.With(require(access.ShopsView)).Get("/", h.listShops)
				r.With(require(access.ShopsCreate)).Post("/", h.createShop)
				r.With(require(access.ShopsView)).Get("/{id}", h.getShop)
				r.With(require(access.ShopsUpdate)).Put("/{id}", h.updateShop)
				r.With(require(access.ShopsDelete)).Delete("/{id}", h.deleteShop)
			})

			r.Route("/product-types", func(r chi.Router) {
				r.With(require(access.ProductTypesView)).Get("/", h.listTypes)
				r.With(require(access.ProductTypesCreate)).Post("/", h.createType)
				r.With(require(access.ProductTypesView)).Get("/{id}", h.getType)
				r.With(require(access.ProductTypesUpdate)).Put("/{id}", h.updateType)
				r.With(require(access.ProductTypesDelete)).Delete("/{id}", h.deleteType)
			})

			r.Route("/product-sizes", func(r chi.Router) {
				r.With(require(access.ProductSizesView)).Get("/", h.listSizes)
				r.With(require(access.ProductSizesCreate)).Post("/", h.createSize)
				r.With(require(access.ProductSizesView)).Get("/{id}", h.getSize)
				r.With(require(access.ProductSizesUpdate)).Put("/{id}", h.updateSize)
				r.With(require(access.ProductSizesDelete)).Delete("/{id}", h.deleteSize)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/lookup", h.lookupCustomer)
				r.With(require(access.CustomersView)).Get("/", h.listCustomers)
				r.With(require(access.CustomersView)).Get("/{id}", h.getCustomer)
				r.With(require(access.CustomersUpdate)).Put("/{id}", h.updateCustomer)
				r.With(require(access.CustomersDelete)).Delete("/{id}", h.deleteCustomer)
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(require(access.OrdersView)).Get("/", h.listOrders)
				r.With(require(access.OrdersCreate)).Post("/", h.createOrder)
				r.With(require(access.OrdersView)).Get("/{id}", h.getOrder)
				r.With(require(access.OrdersUpdate)).Put("/{id}", h.updateOrder)
				r.With(require(access.OrdersUpdate)).Patch("/{id}/status", h.updateOrderStatus)
				r.With(require(access.PaymentsCreate)).Post("/{id}/payments", h.addPayment)
			})

			r.Route("/users", func(r chi.Router) {
				r.With(require(access.UsersView)).Get("/", h.listUsers)
				r.With(require(access.UsersCreate)).Post("/", h.createUser)
				r.With(require(access.UsersView)).Get("/{id}", h.getUser)
				r.With(require(access.UsersUpdate)).Put("/{id}", h.updateUser)
				r.With(require(access.UsersDelete)).Delete("/{id}", h.deleteUser)
			})

			r.Route("/roles", func(r chi.Router) {
				r.With(require(access.RolesView)).Get("/", h.listRoles)
				r.With(require(access.RolesCreate)).Post("/", h.createRole)
				r.With(require(access.RolesView)).Get("/{id}", h.getRole)
				r.With(require(access.RolesUpdate)).Put("/{id}", h.updateRole)
				r.With(require(access.RolesDelete)).Delete("/{id}", h.deleteRole)
			})

			r.Route("/permissions", func(r chi.Router) {
				r.With(require(access.PermissionsView)).Get("/", h.listPermissions)
				r.With(require(access.PermissionsCreate)).Post("/", h.createPermission)
				r.With(require(access.PermissionsView)).Get("/{id}", h.getPermission)
				r.With(require(access.PermissionsUpdate)).Put("/{id}", h.updatePermission)
				r.With(require(access.PermissionsDelete)).Delete("/{id}", h.deletePermission)
			})
		})
	})
	return r
}
