package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tableside-backend/api/controllers"
	"github.com/angelmondragon/tableside-backend/api/middleware"
	"github.com/angelmondragon/tableside-backend/internal/dues"
	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/internal/products"
	"github.com/angelmondragon/tableside-backend/internal/settlement"
	"github.com/angelmondragon/tableside-backend/internal/tables"
	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/redis"
)

// Services groups the domain services mounted under /api/v1.
type Services struct {
	Tables     tables.Service
	Settlement settlement.Service
	Dues       dues.Service
	Inventory  inventory.Service
	Products   products.Service
	Vendors    controllers.VendorService
	Reports    controllers.ReportService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	managers := middleware.RequireRole(logg, enums.StaffRoleOwner, enums.StaffRoleManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.BranchContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/tables", func(r chi.Router) {
			r.Post("/", controllers.TableCreate(svcs.Tables, logg))
			r.Get("/", controllers.TableList(svcs.Tables, logg))
			r.Get("/{tableId}", controllers.TableDetail(svcs.Tables, logg))
			r.Post("/{tableId}/orders", controllers.TableAddOrders(svcs.Tables, logg))
			r.Post("/{tableId}/bill", controllers.TableBill(svcs.Settlement, logg))
			r.Post("/{tableId}/settle", controllers.TableSettle(svcs.Settlement, logg))
		})

		r.Route("/dues", func(r chi.Router) {
			r.Get("/", controllers.DuesList(svcs.Dues, logg))
			r.Post("/{entryId}/settle", controllers.DueSettle(svcs.Dues, logg))
		})
		r.Route("/history", func(r chi.Router) {
			r.Get("/", controllers.HistoryList(svcs.Dues, logg))
			r.Get("/export", controllers.HistoryExport(svcs.Dues, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/orders", controllers.OrdersReport(svcs.Reports, logg))
			r.Get("/orders/export", controllers.OrdersExport(svcs.Reports, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/", controllers.InventoryAdd(svcs.Inventory, logg))
			r.Get("/", controllers.InventoryList(svcs.Inventory, logg))
			r.Get("/categories", controllers.InventoryCategories(svcs.Inventory, logg))
			r.Get("/{itemId}", controllers.InventoryDetail(svcs.Inventory, logg))
			r.Get("/{itemId}/history", controllers.InventoryHistory(svcs.Inventory, logg))
			r.With(managers).Put("/{itemId}", controllers.InventoryUpdate(svcs.Inventory, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svcs.Products, logg))
			r.With(managers).Post("/", controllers.ProductCreate(svcs.Products, logg))
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", controllers.VendorList(svcs.Vendors, logg))
			r.Get("/{vendorId}", controllers.VendorDetail(svcs.Vendors, logg))
			r.Get("/{vendorId}/stock/export", controllers.VendorStockExport(svcs.Vendors, logg))
			r.Post("/{vendorId}/stock", controllers.VendorAddStock(svcs.Vendors, logg))
			r.With(managers).Post("/", controllers.VendorCreate(svcs.Vendors, logg))
			r.With(managers).Put("/{vendorId}", controllers.VendorUpdate(svcs.Vendors, logg))
		})
	})

	return r
}
