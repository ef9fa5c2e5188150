// Command seed-db prepares a database for first use: schema, permission
// catalogue, default roles, an Administrator account and optional demo data.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/catalog"
	"github.com/xenking/tailor-orders/internal/domain/shop"
	"github.com/xenking/tailor-orders/internal/storage/postgres"
)

const staffRole = "Staff"

type options struct {
	databaseURL   string
	adminName     string
	adminEmail    string
	adminPassword string
	demo          bool
}

// demoCatalog maps garment types to the sizes offered for each.
var demoCatalog = []struct {
	name, description string
	sizes             []string
}{
	{"Shirt", "Formal and casual shirts", []string{"S", "M", "L", "XL"}},
	{"Panjabi", "Traditional panjabi", []string{"38", "40", "42", "44"}},
	{"Trouser", "Formal trousers", []string{"30", "32", "34", "36"}},
	{"Blouse", "Saree blouse", []string{"Standard", "Custom"}},
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.adminName, "admin-name", "Administrator", "name of the Administrator account")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "email of the Administrator account (or TAILOR_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "password of the Administrator account (or TAILOR_SEED_ADMIN_PASSWORD env)")
	flag.BoolVar(&opts.demo, "demo", false, "also create the DHK demo shop and a sample catalog")
	flag.Parse()

	opts.fromEnv()
	if err := opts.validate(); err != nil {
		slog.Error("invalid options", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func (o *options) fromEnv() {
	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.adminEmail == "" {
		o.adminEmail = os.Getenv("TAILOR_SEED_ADMIN_EMAIL")
	}
	if o.adminPassword == "" {
		o.adminPassword = os.Getenv("TAILOR_SEED_ADMIN_PASSWORD")
	}
}

func (o *options) validate() error {
	switch {
	case o.databaseURL == "":
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	case o.adminEmail == "":
		return errors.New("admin email is required: set --admin-email or TAILOR_SEED_ADMIN_EMAIL")
	case len(o.adminPassword) < access.MinPasswordLength:
		return errors.Errorf("admin password must be at least %d characters", access.MinPasswordLength)
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewAccessRepository(pool)
	adminID, err := repo.SeedRole(ctx, access.AdministratorRole, access.Catalogue())
	if err != nil {
		return errors.Wrap(err, "seed administrator role")
	}
	slog.Info("seeded role", slog.String("name", access.AdministratorRole), slog.Int("permissions", len(access.Catalogue())))

	if _, err := repo.SeedRole(ctx, staffRole, access.StaffPermissions()); err != nil {
		return errors.Wrap(err, "seed staff role")
	}
	slog.Info("seeded role", slog.String("name", staffRole), slog.Int("permissions", len(access.StaffPermissions())))

	hash, err := access.HashPassword(opts.adminPassword)
	if err != nil {
		return err
	}
	created, err := repo.SeedUser(ctx, access.User{Name: opts.adminName, Email: opts.adminEmail, PasswordHash: hash}, adminID)
	if err != nil {
		return errors.Wrap(err, "seed administrator")
	}
	slog.Info("seeded administrator", slog.String("email", opts.adminEmail), slog.Bool("created", created))

	if !opts.demo {
		return nil
	}
	if err := seedDemo(ctx, shop.NewService(postgres.NewShopRepository(pool)), catalog.NewService(postgres.NewCatalogRepository(pool))); err != nil {
		return errors.Wrap(err, "seed demo data")
	}
	return nil
}

// seedDemo creates the demo shop and catalog. Rows that already exist are
// left untouched, so the command can be re-run.
func seedDemo(ctx context.Context, shops *shop.Service, cat *catalog.Service) error {
	_, err := shops.Create(ctx, shop.Input{Code: "DHK", Name: "Dhaka Main", Address: "Road 27, Dhanmondi, Dhaka"})
	switch {
	case errors.Is(err, shop.ErrCodeTaken):
		slog.Info("demo shop exists", slog.String("code", "DHK"))
	case err != nil:
		return errors.Wrap(err, "create demo shop")
	default:
		slog.Info("created demo shop", slog.String("code", "DHK"))
	}

	existing, err := cat.ListTypes(ctx)
	if err != nil {
		return errors.Wrap(err, "list product types")
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Name] = true
	}

	for _, item := range demoCatalog {
		if have[item.name] {
			continue
		}
		t, err := cat.CreateType(ctx, item.name, item.description)
		if err != nil {
			return errors.Wrapf(err, "create product type %s", item.name)
		}
		for _, size := range item.sizes {
			if _, err := cat.CreateSize(ctx, t.ID, size); err != nil {
				return errors.Wrapf(err, "create size %s/%s", item.name, size)
			}
		}
		slog.Info("created product type", slog.String("name", item.name), slog.Int("sizes", len(item.sizes)))
	}
	return nil
}
