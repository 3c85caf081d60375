package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockCatalog struct {
	products   []product.Product
	err        error
	lastLimit  int
	lastSearch product.SearchParams
	lastThresh int
}

func (m *mockCatalog) Featured(_ context.Context, limit int) ([]product.Product, error) {
	m.lastLimit = limit
	return m.products, m.err
}

func (m *mockCatalog) Search(_ context.Context, p product.SearchParams) ([]product.Product, error) {
	m.lastSearch = p
	return m.products, m.err
}

func (m *mockCatalog) LowStock(_ context.Context, threshold int) ([]product.Product, error) {
	m.lastThresh = threshold
	return m.products, m.err
}

type mockCarts struct {
	items    []cart.Item
	item     *cart.Item
	err      error
	lastUser uuid.UUID
	lastAdd  cart.AddRequest
	cleared  bool
}

func (m *mockCarts) AddToCart(_ context.Context, userID uuid.UUID, req cart.AddRequest) (*cart.Item, error) {
	m.lastUser, m.lastAdd = userID, req
	return m.item, m.err
}

func (m *mockCarts) UpdateQuantity(_ context.Context, userID, _ uuid.UUID, q int) (*cart.Item, error) {
	m.lastUser = userID
	if m.err != nil {
		return nil, m.err
	}
	it := *m.item
	it.Quantity = q
	return &it, nil
}

func (m *mockCarts) Clear(_ context.Context, userID uuid.UUID) error {
	m.lastUser, m.cleared = userID, true
	return m.err
}

func (m *mockCarts) Items(_ context.Context, userID uuid.UUID) ([]cart.Item, error) {
	m.lastUser = userID
	return m.items, m.err
}

func (m *mockCarts) Summary(_ context.Context, userID uuid.UUID) (*cart.Summary, error) {
	m.lastUser = userID
	if m.err != nil {
		return nil, m.err
	}
	return cart.Summarize(m.items), nil
}

type mockOrders struct {
	order      *order.Order
	err        error
	lastCreate order.CreateRequest
	lastStatus string
	lastUser   uuid.UUID
}

func (m *mockOrders) Create(_ context.Context, userID uuid.UUID, req order.CreateRequest) (*order.Order, error) {
	m.lastUser, m.lastCreate = userID, req
	return m.order, m.err
}

func (m *mockOrders) Cancel(_ context.Context, userID, _ uuid.UUID) (*order.Order, error) {
	m.lastUser = userID
	return m.order, m.err
}

func (m *mockOrders) UpdateStatus(_ context.Context, _ uuid.UUID, raw string) (*order.Order, error) {
	m.lastStatus = raw
	if m.err != nil {
		return nil, m.err
	}
	if _, err := order.ParseStatus(raw); err != nil {
		return nil, err
	}
	return m.order, nil
}

func (m *mockOrders) Get(_ context.Context, userID, _ uuid.UUID) (*order.Order, error) {
	m.lastUser = userID
	return m.order, m.err
}

func (m *mockOrders) List(_ context.Context, userID uuid.UUID) ([]order.Order, error) {
	m.lastUser = userID
	if m.order == nil {
		return nil, m.err
	}
	return []order.Order{*m.order}, m.err
}

type mockUsers struct {
	users   map[uuid.UUID]*user.User
	lastUpd user.ProfileUpdate
}

func (m *mockUsers) Active(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if !u.IsActive {
		return nil, user.ErrInactive
	}
	return u, nil
}

func (m *mockUsers) UpdateProfile(ctx context.Context, id uuid.UUID, upd user.ProfileUpdate) (*user.User, error) {
	m.lastUpd = upd
	u, err := m.Active(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	return u, nil
}

func (m *mockUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	m.users[id].IsActive = false
	return nil
}

type mockAPIKeyRepo struct {
	keys map[string]*auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

// --- Helpers ---

var (
	testSecret = []byte("test-jwt-secret")
	testPepper = []byte("test-pepper")
)

const (
	adminKey  = "sk_admin_123"
	viewerKey = "sk_viewer_456"
)

type testEnv struct {
	server  *http.ServeMux
	catalog *mockCatalog
	carts   *mockCarts
	orders  *mockOrders
	users   *mockUsers
	apikeys *mockAPIKeyRepo
	userID  uuid.UUID
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	userID := uuid.New()
	env := &testEnv{
		server:  http.NewServeMux(),
		catalog: &mockCatalog{},
		carts:   &mockCarts{},
		orders:  &mockOrders{},
		users: &mockUsers{users: map[uuid.UUID]*user.User{
			userID: {ID: userID, Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", IsActive: true},
		}},
		apikeys: &mockAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
			auth.HashKey(testPepper, adminKey): {
				ID: uuid.New(), KeyHash: auth.HashKey(testPepper, adminKey), Name: "ops", Scopes: []string{auth.ScopeAdmin},
			},
			auth.HashKey(testPepper, viewerKey): {
				ID: uuid.New(), KeyHash: auth.HashKey(testPepper, viewerKey), Name: "viewer", Scopes: []string{"read"},
			},
		}},
		userID: userID,
	}
	token, err := IssueToken(testSecret, userID, time.Hour, time.Now())
	require.NoError(t, err)
	env.token = token

	sec := NewSecurityHandler(env.users, env.apikeys, testSecret, testPepper)
	NewHandler(env.catalog, env.carts, env.orders, env.users, sec).Routes(env.server)
	return env
}

type call struct {
	method, path string
	body         any
	token        string
	apiKey       string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var b errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&b))
	assert.Equal(t, w.Code, b.Code)
	return b
}

func detailFields(b errorBody) []string {
	out := make([]string, len(b.Details))
	for i, d := range b.Details {
		out[i] = d.Field
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validAddress() map[string]any {
	return map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"street":    "1 Main St",
		"city":      "Springfield",
		"state":     "IL",
		"zipCode":   "62701",
		"country":   "US",
		"phone":     "+1 (555) 123-4567",
	}
}

func testOrder(userID uuid.UUID) *order.Order {
	return &order.Order{
		ID:              uuid.New(),
		Number:          "ORD-1760000000000-ABCD1234",
		UserID:          userID,
		Status:          order.StatusPending,
		Subtotal:        dec("100.00"),
		Tax:             dec("8.00"),
		Shipping:        dec("15.00"),
		Discount:        decimal.Zero,
		Total:           dec("123.00"),
		PaymentMethod:   order.PaymentCreditCard,
		ShippingMethod:  pricing.ShippingExpress,
		BillingAddress:  order.Address{FirstName: "Jane"},
		ShippingAddress: order.Address{FirstName: "Jane"},
		Lines: []order.Line{{
			ProductID: uuid.New(), Quantity: 2, UnitPrice: dec("50"), TotalPrice: dec("100"),
		}},
	}
}

// --- Tests ---

func TestFeaturedProducts(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.products = []product.Product{{
		ID: uuid.New(), SKU: "MUG-1", Name: "Mug", Price: dec("9.9"), StockQuantity: 4, IsFeatured: true,
	}}

	w := env.do(t, call{method: http.MethodGet, path: "/api/products/featured?limit=5"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, env.catalog.lastLimit)
	assert.Contains(t, w.Body.String(), `"price":9.90`)
	assert.Contains(t, w.Body.String(), `"tags":[]`)

	w = env.do(t, call{method: http.MethodGet, path: "/api/products/featured?limit=ten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"limit"}, detailFields(decodeError(t, w)))
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t)
	catID := uuid.New()

	w := env.do(t, call{
		method: http.MethodGet,
		path:   "/api/products/search?query=mug&categoryId=" + catID.String() + "&minPrice=5&maxPrice=20.50&sortBy=price&sortOrder=desc&page=2&limit=10",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	p := env.catalog.lastSearch
	assert.Equal(t, "mug", p.Query)
	assert.Equal(t, catID, p.CategoryID.UUID)
	assert.True(t, p.MinPrice.Decimal.Equal(dec("5")))
	assert.True(t, p.MaxPrice.Decimal.Equal(dec("20.50")))
	assert.Equal(t, product.SortPrice, p.SortBy)
	assert.True(t, p.Descending)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.Limit)
}

func TestSearchProducts_InvalidParams(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{
		method: http.MethodGet,
		path:   "/api/products/search?sortBy=name%3BDROP%20TABLE%20products&minPrice=-1&categoryId=x&sortOrder=sideways&page=" + strconv.Itoa(product.MaxSearchPage+1),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	b := decodeError(t, w)
	assert.Equal(t, "invalid_argument", b.Kind)
	assert.ElementsMatch(t, []string{"categoryId", "minPrice", "sortBy", "sortOrder", "page"}, detailFields(b))
}

func TestCustomerAuth(t *testing.T) {
	env := newTestEnv(t)

	expired, err := IssueToken(testSecret, env.userID, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other-secret"), env.userID, time.Hour, time.Now())
	require.NoError(t, err)
	unknown, err := IssueToken(testSecret, uuid.New(), time.Hour, time.Now())
	require.NoError(t, err)
	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.RegisteredClaims{
		Subject:   env.userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: env.userID.String(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"missing", "", "authentication required"},
		{"expired", expired, "invalid or expired token"},
		{"wrong secret", forged, "invalid or expired token"},
		{"unknown user", unknown, "invalid or expired token"},
		{"wrong algorithm", hs384, "invalid or expired token"},
		{"no expiry", noExp, "invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, call{method: http.MethodGet, path: "/api/cart", token: tt.token})
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			b := decodeError(t, w)
			assert.Equal(t, "unauthenticated", b.Kind)
			assert.Equal(t, tt.message, b.Message)
		})
	}
}

func TestDeactivateAccount(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{method: http.MethodPost, path: "/api/users/me/deactivate", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = env.do(t, call{method: http.MethodGet, path: "/api/users/me", token: env.token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "account is deactivated", decodeError(t, w).Message)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{
		method: http.MethodPatch, path: "/api/users/me", token: env.token,
		body: map[string]any{"firstName": "Janet"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"firstName":"Janet"`)
	require.NotNil(t, env.users.lastUpd.FirstName)
	assert.Nil(t, env.users.lastUpd.Phone)

	w = env.do(t, call{
		method: http.MethodPatch, path: "/api/users/me", token: env.token,
		body: map[string]any{"firstName": "J", "phone": "call me"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.ElementsMatch(t, []string{"firstName", "phone"}, detailFields(decodeError(t, w)))
}

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t)
	productID, variantID := uuid.New(), uuid.New()
	env.carts.item = &cart.Item{
		ID: uuid.New(), UserID: env.userID, ProductID: productID,
		VariantID: uuid.NullUUID{UUID: variantID, Valid: true},
		Quantity:  2, UnitPrice: dec("12.5"), TotalPrice: dec("25"),
	}

	w := env.do(t, call{
		method: http.MethodPost, path: "/api/cart/items", token: env.token,
		body: map[string]any{"productId": productID, "variantId": variantID, "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, env.userID, env.carts.lastUser)
	assert.Equal(t, cart.AddRequest{
		ProductID: productID,
		VariantID: uuid.NullUUID{UUID: variantID, Valid: true},
		Quantity:  2,
	}, env.carts.lastAdd)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 12.5, got["unitPrice"])
	assert.Equal(t, 25.0, got["totalPrice"])
	assert.Equal(t, variantID.String(), got["variantId"])
}

func TestAddToCart_Rejections(t *testing.T) {
	env := newTestEnv(t)
	productID := uuid.New().String()

	tests := []struct {
		name   string
		body   any
		err    error
		status int
		kind   string
		fields []string
	}{
		{
			name:   "zero quantity",
			body:   map[string]any{"productId": productID, "quantity": 0},
			status: http.StatusBadRequest, kind: "invalid_argument", fields: []string{"quantity"},
		},
		{
			name:   "quantity above max",
			body:   map[string]any{"productId": productID, "quantity": 1000},
			status: http.StatusBadRequest, kind: "invalid_argument", fields: []string{"quantity"},
		},
		{
			name:   "bad product id",
			body:   map[string]any{"productId": "mug", "quantity": 1},
			status: http.StatusBadRequest, kind: "invalid_argument", fields: []string{"productId"},
		},
		{
			name:   "unknown field",
			body:   map[string]any{"productId": productID, "quantity": 1, "price": 0.01},
			status: http.StatusBadRequest, kind: "invalid_argument",
		},
		{
			name:   "wrong type",
			body:   `{"productId":"` + productID + `","quantity":"two"}`,
			status: http.StatusBadRequest, kind: "invalid_argument", fields: []string{"quantity"},
		},
		{
			name:   "malformed",
			body:   `{"productId":`,
			status: http.StatusBadRequest, kind: "invalid_argument",
		},
		{
			name:   "insufficient stock",
			body:   map[string]any{"productId": productID, "quantity": 5},
			err:    cart.ErrInsufficientStock,
			status: http.StatusConflict, kind: "insufficient_stock",
		},
		{
			name:   "inactive product",
			body:   map[string]any{"productId": productID, "quantity": 1},
			err:    product.ErrNotFound,
			status: http.StatusNotFound, kind: "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.carts.err = tt.err
			w := env.do(t, call{method: http.MethodPost, path: "/api/cart/items", token: env.token, body: tt.body})
			require.Equal(t, tt.status, w.Code)
			b := decodeError(t, w)
			assert.Equal(t, tt.kind, b.Kind)
			if tt.fields != nil {
				assert.Equal(t, tt.fields, detailFields(b))
			}
		})
	}
}

func TestAddToCart_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `{"productId":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	w := env.do(t, call{method: http.MethodPost, path: "/api/cart/items", token: env.token, body: big})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", decodeError(t, w).Message)
}

func TestUpdateQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.carts.item = &cart.Item{ID: uuid.New(), Quantity: 1, UnitPrice: dec("3"), TotalPrice: dec("3")}

	w := env.do(t, call{
		method: http.MethodPatch, path: "/api/cart/items/" + env.carts.item.ID.String(), token: env.token,
		body: map[string]any{"quantity": 4},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quantity":4`)

	w = env.do(t, call{
		method: http.MethodPatch, path: "/api/cart/items/not-a-uuid", token: env.token,
		body: map[string]any{"quantity": 4},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid id", decodeError(t, w).Message)

	env.carts.err = cart.ErrItemNotFound
	w = env.do(t, call{
		method: http.MethodPatch, path: "/api/cart/items/" + uuid.NewString(), token: env.token,
		body: map[string]any{"quantity": 4},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartSummaryAndList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{method: http.MethodGet, path: "/api/cart/summary", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"itemCount":0,"subtotal":0.00,"estimatedTax":0.00,"shipping":5.00,"estimatedTotal":5.00}`, w.Body.String())

	env.carts.items = []cart.Item{
		{ID: uuid.New(), Quantity: 2, UnitPrice: dec("50"), TotalPrice: dec("100")},
		{ID: uuid.New(), Quantity: 1, UnitPrice: dec("25"), TotalPrice: dec("25")},
	}
	w = env.do(t, call{method: http.MethodGet, path: "/api/cart", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Items   []map[string]any `json:"items"`
		Summary map[string]any   `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got.Items, 2)
	assert.Equal(t, 3.0, got.Summary["itemCount"])
	assert.Equal(t, 125.0, got.Summary["subtotal"])
	assert.Equal(t, 10.0, got.Summary["estimatedTax"])
	assert.Equal(t, 140.0, got.Summary["estimatedTotal"])
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{method: http.MethodDelete, path: "/api/cart", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.carts.cleared)
	assert.Equal(t, env.userID, env.carts.lastUser)
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = testOrder(env.userID)

	w := env.do(t, call{
		method: http.MethodPost, path: "/api/orders", token: env.token,
		body: map[string]any{
			"billingAddress":  validAddress(),
			"shippingAddress": validAddress(),
			"paymentMethod":   "credit_card",
			"shippingMethod":  "express",
			"promoCode":       "WELCOME10",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/orders/"+env.orders.order.ID.String(), w.Header().Get("Location"))

	req := env.orders.lastCreate
	assert.Equal(t, env.userID, env.orders.lastUser)
	assert.Equal(t, order.PaymentCreditCard, req.PaymentMethod)
	assert.Equal(t, pricing.ShippingExpress, req.ShippingMethod)
	assert.Equal(t, "Springfield", req.ShippingAddress.City)
	assert.Equal(t, "WELCOME10", req.PromoCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, 123.0, got["totalAmount"])
	assert.Equal(t, 0.0, got["discountAmount"])
	assert.Equal(t, "ORD-1760000000000-ABCD1234", got["orderNumber"])
}

func TestCreateOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)

	addr := validAddress()
	delete(addr, "city")
	w := env.do(t, call{
		method: http.MethodPost, path: "/api/orders", token: env.token,
		body: map[string]any{
			"billingAddress":  validAddress(),
			"shippingAddress": addr,
			"paymentMethod":   "bitcoin",
			"shippingMethod":  "express",
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.ElementsMatch(t, []string{"shippingAddress.city", "paymentMethod"}, detailFields(decodeError(t, w)))

	env.orders.err = pricing.ErrEmptyCart
	w = env.do(t, call{
		method: http.MethodPost, path: "/api/orders", token: env.token,
		body: map[string]any{
			"billingAddress":  validAddress(),
			"shippingAddress": validAddress(),
			"paymentMethod":   "paypal",
			"shippingMethod":  "standard",
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	b := decodeError(t, w)
	assert.Equal(t, "empty_cart", b.Kind)
	assert.Equal(t, "cart is empty", b.Message)
}

func TestOrders_ReadAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = testOrder(env.userID)
	path := "/api/orders/" + env.orders.order.ID.String()

	w := env.do(t, call{method: http.MethodGet, path: "/api/orders", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), env.orders.order.Number)

	w = env.do(t, call{method: http.MethodGet, path: path, token: env.token})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, call{method: http.MethodPost, path: path + "/cancel", token: env.token})
	require.Equal(t, http.StatusOK, w.Code)

	env.orders.err = order.ErrCannotCancel
	w = env.do(t, call{method: http.MethodPost, path: path + "/cancel", token: env.token})
	require.Equal(t, http.StatusConflict, w.Code)
	b := decodeError(t, w)
	assert.Equal(t, "invalid_state_transition", b.Kind)
	assert.Equal(t, "order cannot be cancelled", b.Message)

	env.orders.err = order.ErrNotFound
	w = env.do(t, call{method: http.MethodGet, path: path, token: env.token})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreFailureHidesCause(t *testing.T) {
	env := newTestEnv(t)
	env.carts.err = apperr.Store(errors.New("pq: connection reset by peer 10.0.0.5"), "list cart items")

	w := env.do(t, call{method: http.MethodGet, path: "/api/cart", token: env.token})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	b := decodeError(t, w)
	assert.Equal(t, "store_failure", b.Kind)
	assert.Equal(t, "list cart items", b.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	env.carts.err = errors.New("unexpected")
	w = env.do(t, call{method: http.MethodGet, path: "/api/cart", token: env.token})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeError(t, w).Message)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = testOrder(env.userID)
	path := "/api/admin/orders/" + env.orders.order.ID.String() + "/status"
	body := map[string]any{"status": "shipped"}

	w := env.do(t, call{method: http.MethodPatch, path: path, body: body})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, call{method: http.MethodPatch, path: path, body: body, apiKey: "sk_wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid api key", decodeError(t, w).Message)

	w = env.do(t, call{method: http.MethodPatch, path: path, body: body, apiKey: viewerKey})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Kind)

	// A customer token is not an operator credential.
	w = env.do(t, call{method: http.MethodPatch, path: path, body: body, token: env.token})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	env.apikeys.err = errors.New("connection refused")
	w = env.do(t, call{method: http.MethodPatch, path: path, body: body, apiKey: adminKey})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = testOrder(env.userID)
	path := "/api/admin/orders/" + env.orders.order.ID.String() + "/status"

	w := env.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{"status": "shipped"}, apiKey: adminKey})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipped", env.orders.lastStatus)

	w = env.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{"status": "lost"}, apiKey: adminKey})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid order status", decodeError(t, w).Message)

	w = env.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{}, apiKey: adminKey})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"status"}, detailFields(decodeError(t, w)))

	env.orders.err = order.ErrInvalidTransition
	w = env.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{"status": "pending"}, apiKey: adminKey})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLowStockProducts(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.products = []product.Product{{ID: uuid.New(), Name: "Lamp", Price: dec("40"), StockQuantity: 2}}

	w := env.do(t, call{method: http.MethodGet, path: "/api/admin/products/low-stock?threshold=3", apiKey: adminKey})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, env.catalog.lastThresh)
	assert.Contains(t, w.Body.String(), `"stockQuantity":2`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, call{method: http.MethodGet, path: "/api/coupons"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Kind)
}
