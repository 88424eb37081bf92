package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"kolia/internal/config"
	"kolia/internal/db"
	"kolia/internal/domain"
	"kolia/internal/gateway"
	"kolia/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMessage struct {
	Phone   string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (r *recordingNotifier) Send(_ context.Context, phone, message string) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{phone, message})
	if r.fail {
		return notify.Result{Error: "whatsapp down"}
	}
	return notify.Result{Success: true}
}

func (r *recordingNotifier) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.sent...)
}

type fakeGateway struct {
	initErr   error
	initReq   gateway.InitRequest
	status    *gateway.StatusResponse
	statusErr error
	checks    int
}

func (f *fakeGateway) Initialize(_ context.Context, req gateway.InitRequest) (*gateway.InitResponse, error) {
	f.initReq = req
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &gateway.InitResponse{PaymentURL: "https://checkout.cinetpay.com/pay/" + req.TransactionID, PaymentToken: "tok"}, nil
}

func (f *fakeGateway) CheckStatus(_ context.Context, _ string) (*gateway.StatusResponse, error) {
	f.checks++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

var errGatewayDown = errors.New("dial tcp: connection refused")

func testConfig() *config.Config {
	return &config.Config{
		CommissionRate:     0.15,
		DefaultDeliveryFee: 5000,
		DefaultCurrency:    "CDF",
		TransactionPrefix:  "KOLIA",
		FrontendURL:        "http://localhost:5173",
		BackendURL:         "http://localhost:8080",
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// fixture is a small marketplace: one buyer, two restaurants with their owners, one driver
type fixture struct {
	db        *gorm.DB
	notifier  *recordingNotifier
	gateway   *fakeGateway
	orders    *OrderService
	payments  *PaymentService
	buyer     domain.User
	owner     domain.User
	rival     domain.User
	driver    domain.User
	admin     domain.User
	resto     domain.Restaurant
	rivalShop domain.Restaurant
	dish      domain.Dish
	rivalDish domain.Dish
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)
	f := &fixture{db: gdb, notifier: &recordingNotifier{}, gateway: &fakeGateway{}}
	cfg := testConfig()
	f.orders = NewOrderService(gdb, f.notifier, cfg)
	f.payments = NewPaymentService(gdb, f.gateway, f.notifier, cfg)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.payments.now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }

	f.buyer = f.user(t, "Amani", "amani@kolia.cd", "+243970000001", domain.RoleClient)
	f.owner = f.user(t, "Bahati", "bahati@kolia.cd", "+243970000002", domain.RoleRestaurant)
	f.rival = f.user(t, "Chance", "chance@kolia.cd", "+243970000003", domain.RoleRestaurant)
	f.driver = f.user(t, "Dieu-Merci", "dm@kolia.cd", "+243970000004", domain.RoleLivreur)
	f.admin = f.user(t, "Admin", "admin@kolia.cd", "+243970000005", domain.RoleAdmin)

	f.resto = f.restaurant(t, f.owner.ID, "Chez Bahati", decimal.NullDecimal{Decimal: decimal.NewFromInt(5000), Valid: true})
	f.rivalShop = f.restaurant(t, f.rival.ID, "Kivu Grill", decimal.NullDecimal{})
	f.dish = f.addDish(t, f.resto.ID, "Sambaza", decimal.NewFromInt(38970), true)
	f.rivalDish = f.addDish(t, f.rivalShop.ID, "Brochettes", decimal.NewFromInt(12000), true)
	return f
}

func (f *fixture) user(t *testing.T, name, email, phone string, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{Name: name, Email: email, Password: "hash", Phone: phone, Address: "Bukavu", Role: role}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) restaurant(t *testing.T, ownerID uint, name string, fee decimal.NullDecimal) domain.Restaurant {
	t.Helper()
	r := domain.Restaurant{
		UserID: ownerID, Name: name, Address: "Av. Patrice Lumumba", Phone: "+243970000099",
		Commune: domain.CommuneIbanda, Category: "congolais", DeliveryFee: fee, Status: domain.RestaurantActive,
	}
	require.NoError(t, f.db.Create(&r).Error)
	return r
}

func (f *fixture) addDish(t *testing.T, restaurantID uint, name string, price decimal.Decimal, available bool) domain.Dish {
	t.Helper()
	d := domain.Dish{RestaurantID: restaurantID, Name: name, Price: price, Category: "plat", IsAvailable: true}
	require.NoError(t, f.db.Create(&d).Error)
	if !available {
		require.NoError(t, f.db.Model(&d).Update("is_available", false).Error)
		d.IsAvailable = false
	}
	return d
}

func (f *fixture) checkout(qty int) CreateOrderInput {
	return CreateOrderInput{
		RestaurantID:    f.resto.ID,
		Items:           []CartItem{{DishID: f.dish.ID, Quantity: qty}},
		DeliveryAddress: "Avenue Kabare 12, Ibanda",
		Phone:           "+243990000001",
		PaymentMethod:   domain.MethodMobile,
	}
}

func (f *fixture) placeOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), f.buyer.ID, f.checkout(2))
	require.NoError(t, err)
	return o
}

func (f *fixture) reload(t *testing.T, id uint) domain.Order {
	t.Helper()
	var o domain.Order
	require.NoError(t, f.db.First(&o, id).Error)
	return o
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func actor(u domain.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
