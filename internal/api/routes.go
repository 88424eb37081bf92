package api

import (
	"fmt"
	"net/http"
	"strings"

	"kolia/internal/domain"
	"kolia/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route is one entry of the API dispatch table, relative to /api
type Route struct {
	Method  string
	Path    string
	Public  bool          // No token required
	Roles   []domain.Role // Empty means any authenticated account
	Handler gin.HandlerFunc
}

var (
	clientOnly     = []domain.Role{domain.RoleClient}
	restaurantOnly = []domain.Role{domain.RoleRestaurant}
	adminOnly      = []domain.Role{domain.RoleAdmin}
)

func roles(r ...domain.Role) []domain.Role { return r }

// Routes is the complete API table. Static paths come before parameterized
// siblings; ValidateRoutes enforces it.
func Routes(d *Deps) []Route {
	return []Route{
		// auth
		{Method: http.MethodPost, Path: "/auth/register", Public: true, Handler: RegisterHandler(d)},
		{Method: http.MethodPost, Path: "/auth/login", Public: true, Handler: LoginHandler(d)},
		{Method: http.MethodGet, Path: "/auth/me", Handler: MeHandler()},

		// users
		{Method: http.MethodGet, Path: "/users", Roles: adminOnly, Handler: ListUsersHandler(d)},
		{Method: http.MethodGet, Path: "/users/:id", Handler: GetUserHandler(d)},
		{Method: http.MethodPut, Path: "/users/:id", Handler: UpdateUserHandler(d)},
		{Method: http.MethodDelete, Path: "/users/:id", Roles: adminOnly, Handler: DeleteUserHandler(d)},

		// restaurants
		{Method: http.MethodGet, Path: "/restaurants", Public: true, Handler: ListRestaurantsHandler(d)},
		{Method: http.MethodGet, Path: "/restaurants/owner/me", Roles: restaurantOnly, Handler: MyRestaurantHandler(d)},
		{Method: http.MethodGet, Path: "/restaurants/:id", Public: true, Handler: GetRestaurantHandler(d)},
		{Method: http.MethodGet, Path: "/restaurants/:id/dishes", Public: true, Handler: ListRestaurantDishesHandler(d)},
		{Method: http.MethodPost, Path: "/restaurants", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: CreateRestaurantHandler(d)},
		{Method: http.MethodPut, Path: "/restaurants/:id", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: UpdateRestaurantHandler(d)},
		{Method: http.MethodPatch, Path: "/restaurants/:id/status", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: UpdateRestaurantStatusHandler(d)},
		{Method: http.MethodDelete, Path: "/restaurants/:id", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: DeleteRestaurantHandler(d)},

		// dishes
		{Method: http.MethodGet, Path: "/dishes", Public: true, Handler: ListDishesHandler(d)},
		{Method: http.MethodGet, Path: "/dishes/search", Public: true, Handler: SearchDishesHandler(d)},
		{Method: http.MethodGet, Path: "/dishes/:id", Public: true, Handler: GetDishHandler(d)},
		{Method: http.MethodPost, Path: "/dishes", Roles: restaurantOnly, Handler: CreateDishHandler(d)},
		{Method: http.MethodPut, Path: "/dishes/:id", Roles: restaurantOnly, Handler: UpdateDishHandler(d)},
		{Method: http.MethodDelete, Path: "/dishes/:id", Roles: restaurantOnly, Handler: DeleteDishHandler(d)},

		// orders
		{Method: http.MethodGet, Path: "/orders/my-orders", Roles: clientOnly, Handler: MyOrdersHandler(d)},
		{Method: http.MethodGet, Path: "/orders/driver/me", Roles: roles(domain.RoleLivreur), Handler: DriverOrdersHandler(d)},
		{Method: http.MethodGet, Path: "/orders/restaurant/:restaurantId", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: RestaurantOrdersHandler(d)},
		{Method: http.MethodGet, Path: "/orders", Roles: adminOnly, Handler: ListOrdersHandler(d)},
		{Method: http.MethodPost, Path: "/orders", Roles: clientOnly, Handler: CreateOrderHandler(d)},
		{Method: http.MethodGet, Path: "/orders/:id", Handler: GetOrderHandler(d)},
		{Method: http.MethodGet, Path: "/orders/:id/history", Handler: OrderHistoryHandler(d)},
		{Method: http.MethodPatch, Path: "/orders/:id/status", Roles: roles(domain.RoleRestaurant, domain.RoleLivreur, domain.RoleAdmin), Handler: UpdateOrderStatusHandler(d)},
		{Method: http.MethodPatch, Path: "/orders/:id/cancel", Roles: roles(domain.RoleClient, domain.RoleAdmin), Handler: CancelOrderHandler(d)},
		{Method: http.MethodPatch, Path: "/orders/:id/assign-driver", Roles: roles(domain.RoleRestaurant, domain.RoleAdmin), Handler: AssignDriverHandler(d)},

		// payments
		{Method: http.MethodPost, Path: "/payments/initialize", Roles: clientOnly, Handler: InitializePaymentHandler(d)},
		{Method: http.MethodPost, Path: "/payments/verify", Handler: VerifyPaymentHandler(d)},
		{Method: http.MethodPost, Path: "/payments/webhook", Public: true, Handler: PaymentWebhookHandler(d)},
		{Method: http.MethodGet, Path: "/payments", Roles: adminOnly, Handler: ListTransactionsHandler(d)},
		{Method: http.MethodGet, Path: "/payments/:transactionId/status", Handler: PaymentStatusHandler(d)},
		{Method: http.MethodPost, Path: "/payments/:transactionId/refund", Roles: adminOnly, Handler: RefundHandler(d)},

		// admin
		{Method: http.MethodGet, Path: "/admin/dashboard", Roles: adminOnly, Handler: DashboardHandler(d)},
	}
}

func segments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*")
}

// shape replaces parameter names so /a/:id and /a/:orderId compare equal
func shape(path string) string {
	segs := segments(path)
	for i, s := range segs {
		if isParam(s) {
			segs[i] = ":"
		}
	}
	return strings.Join(segs, "/")
}

// shadows reports whether generic, registered first, would capture every request meant for specific
func shadows(generic, specific string) bool {
	g, s := segments(generic), segments(specific)
	if len(g) != len(s) {
		return false
	}
	wider := false
	for i := range g {
		switch {
		case g[i] == s[i]:
		case isParam(g[i]) && !isParam(s[i]):
			wider = true
		case isParam(g[i]) && isParam(s[i]):
		default:
			return false
		}
	}
	return wider
}

// ValidateRoutes rejects duplicate routes and parameterized routes declared ahead of a
// static route they would shadow
func ValidateRoutes(routes []Route) error {
	seen := map[string]int{}
	for i, r := range routes {
		if r.Handler == nil {
			return fmt.Errorf("route %s %s has no handler", r.Method, r.Path)
		}
		key := r.Method + " " + shape(r.Path)
		if j, dup := seen[key]; dup {
			return fmt.Errorf("duplicate route %s %s (already declared as %s)", r.Method, r.Path, routes[j].Path)
		}
		seen[key] = i
		for _, earlier := range routes[:i] {
			if earlier.Method == r.Method && shadows(earlier.Path, r.Path) {
				return fmt.Errorf("route %s %s is declared after %s which shadows it", r.Method, r.Path, earlier.Path)
			}
		}
	}
	return nil
}

// Register validates the route table and mounts it under /api together with /health and /metrics
func Register(r *gin.Engine, d *Deps) error {
	routes := Routes(d)
	if err := ValidateRoutes(routes); err != nil {
		return err
	}
	r.GET("/health", func(c *gin.Context) {
		respondOK(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	group := r.Group("/api")
	for _, rt := range routes {
		var chain []gin.HandlerFunc
		if !rt.Public {
			chain = append(chain, auth, middleware.RequireRoles(d.DB, rt.Roles...))
		}
		chain = append(chain, rt.Handler)
		group.Handle(rt.Method, rt.Path, chain...)
	}
	return nil
}
