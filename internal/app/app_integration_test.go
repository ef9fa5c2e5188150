//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/storage/postgres"
	"github.com/xenking/tailor-orders/pkg/health"
)

const (
	adminEmail    = "admin@tailor.test"
	adminPassword = "integration-secret"
)

var testPool *pgxpool.Pool

type noopTelemetry struct{}

func (noopTelemetry) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tailor",
				"POSTGRES_PASSWORD": "tailor",
				"POSTGRES_DB":       "tailor",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://tailor:tailor@%s:%s/tailor?sslmode=disable", host, port.Port())
	testPool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := postgres.RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := seedAdmin(ctx, testPool); err != nil {
		log.Fatalf("seed: %v", err)
	}

	return m.Run()
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	repo := postgres.NewAccessRepository(pool)
	roleID, err := repo.SeedRole(ctx, access.AdministratorRole, access.Catalogue())
	if err != nil {
		return err
	}
	hash, err := access.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	_, err = repo.SeedUser(ctx, access.User{Name: "Admin", Email: adminEmail, PasswordHash: hash}, roleID)
	return err
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func newClient(t *testing.T) *client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{
		Auth:      AuthConfig{JWTSecret: "integration-jwt-secret", TokenTTL: time.Hour},
		RateLimit: RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:      CORSConfig{Origins: []string{"*"}},
	}
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", time.Second, health.PingCheck(testPool))
	healthSvc.SetReady(true)

	h, err := newHTTPHandler(ctx, cfg, testPool, nil, healthSvc, noopTelemetry{})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &client{t: t, base: srv.URL}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (c *client) login() {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.Equal(c.t, http.StatusOK, code, body)
	c.token = body["token"].(string)
}

func (c *client) create(path string, body any) map[string]any {
	c.t.Helper()
	code, out := c.do(http.MethodPost, path, body)
	require.Equal(c.t, http.StatusCreated, code, out)
	return out
}

func TestHealth(t *testing.T) {
	c := newClient(t)

	resp, err := http.Get(c.base + "/livez")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	c := newClient(t)

	code, body := c.do(http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.EqualValues(t, http.StatusUnauthorized, body["code"])

	code, _ = c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    adminEmail,
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestOrderLifecycle(t *testing.T) {
	c := newClient(t)
	c.login()

	shop := c.create("/api/shops", map[string]string{"code": "CTG", "name": "Chattogram"})
	productType := c.create("/api/product-types", map[string]string{"name": "Panjabi"})
	size := c.create("/api/product-sizes", map[string]any{
		"product_type_id": productType["id"],
		"name":            "L",
	})

	delivery := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	newOrder := func(phone string) map[string]any {
		return map[string]any{
			"shop_id":         shop["id"],
			"customer":        map[string]string{"phone": phone, "name": "Karim", "address": "Agrabad"},
			"delivery_date":   delivery,
			"discount_type":   "fixed",
			"discount_amount": "200",
			"items": []map[string]any{{
				"product_type_id": productType["id"],
				"product_size_id": size["id"],
				"quantity":        2,
				"price":           "1500",
			}},
			"payment": map[string]string{"method": "cash", "amount": "1000"},
		}
	}

	first := c.create("/api/orders", newOrder("01812345678"))
	assert.Equal(t, "ORD-CTG-000001", first["order_number"])
	assert.EqualValues(t, 2800, first["total_amount"])
	assert.EqualValues(t, 1000, first["advance_paid"])
	assert.EqualValues(t, 1800, first["due_amount"])
	assert.Equal(t, "pending", first["status"])

	second := c.create("/api/orders", newOrder("01812345678"))
	assert.Equal(t, "ORD-CTG-000002", second["order_number"])
	assert.Equal(t, first["customer_id"], second["customer_id"])

	code, found := c.do(http.MethodGet, "/api/customers/lookup?phone=01812345678", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, found["found"])

	id := int64(first["id"].(float64))
	paid := c.create(fmt.Sprintf("/api/orders/%d/payments", id), map[string]string{"method": "bkash", "amount": "1800", "transaction_id": "TX1"})
	assert.EqualValues(t, 2800, paid["advance_paid"])
	assert.EqualValues(t, 0, paid["due_amount"])

	code, done := c.do(http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, code, done)
	assert.Equal(t, "completed", done["status"])

	code, _ = c.do(http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", id), map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = c.do(http.MethodDelete, fmt.Sprintf("/api/shops/%v", shop["id"]), nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestCreateOrder_Validation(t *testing.T) {
	c := newClient(t)
	c.login()

	code, body := c.do(http.MethodPost, "/api/orders", map[string]any{"shop_id": 1})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.NotEmpty(t, body["errors"])
}
