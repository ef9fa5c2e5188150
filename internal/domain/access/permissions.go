package access

// Permission names checked by the API.
const (
	ShopsView   = "shops.view"
	ShopsCreate = "shops.create"
	ShopsUpdate = "shops.update"
	ShopsDelete = "shops.delete"

	ProductTypesView   = "product-types.view"
	ProductTypesCreate = "product-types.create"
	ProductTypesUpdate = "product-types.update"
	ProductTypesDelete = "product-types.delete"

	ProductSizesView   = "product-sizes.view"
	ProductSizesCreate = "product-sizes.create"
	ProductSizesUpdate = "product-sizes.update"
	ProductSizesDelete = "product-sizes.delete"

	CustomersView   = "customers.view"
	CustomersUpdate = "customers.update"
	CustomersDelete = "customers.delete"

	OrdersView   = "orders.view"
	OrdersCreate = "orders.create"
	OrdersUpdate = "orders.update"

	PaymentsCreate = "payments.create"

	UsersView   = "users.view"
	UsersCreate = "users.create"
	UsersUpdate = "users.update"
	UsersDelete = "users.delete"

	RolesView   = "roles.view"
	RolesCreate = "roles.create"
	RolesUpdate = "roles.update"
	RolesDelete = "roles.delete"

	PermissionsView   = "permissions.view"
	PermissionsCreate = "permissions.create"
	PermissionsUpdate = "permissions.update"
	PermissionsDelete = "permissions.delete"
)

// Catalogue lists every built-in permission name.
func Catalogue() []string {
	return []string{
		ShopsView, ShopsCreate, ShopsUpdate, ShopsDelete,
		ProductTypesView, ProductTypesCreate, ProductTypesUpdate, ProductTypesDelete,
		ProductSizesView, ProductSizesCreate, ProductSizesUpdate, ProductSizesDelete,
		CustomersView, CustomersUpdate, CustomersDelete,
		OrdersView, OrdersCreate, OrdersUpdate,
		PaymentsCreate,
		UsersView, UsersCreate, UsersUpdate, UsersDelete,
		RolesView, RolesCreate, RolesUpdate, RolesDelete,
		PermissionsView, PermissionsCreate, PermissionsUpdate, PermissionsDelete,
	}
}

// StaffPermissions is the grant set of the default Staff role.
func StaffPermissions() []string {
	return []string{
		ShopsView, ProductTypesView, ProductSizesView,
		CustomersView, OrdersView, OrdersCreate, PaymentsCreate,
	}
}
