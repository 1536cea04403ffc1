package handlers

import (
	"github.com/jmoiron/sqlx"

	"musicstore/internal/config"
	"musicstore/internal/events"
	"musicstore/internal/repos"
	"musicstore/internal/services"
)

type Deps struct {
	Auth     *services.AuthService
	Checkout *services.CheckoutService

	AuthHandler      *AuthHandler
	CatalogHandler   *CatalogHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
	APIHandler       *APIHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, pub events.Publisher) *Deps {
	genreRepo := repos.NewGenreRepo(db)
	artistRepo := repos.NewArtistRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	addrRepo := repos.NewAddressRepo(db)
	couponRepo := repos.NewCouponRepo(db)
	reviewRepo := repos.NewReviewRepo(db)
	userRepo := repos.NewUserRepo(db)

	authSvc := &services.AuthService{Users: userRepo}
	catalogSvc := services.NewCatalogService(genreRepo, artistRepo, prodRepo)
	cartSvc := services.NewCartService(prodRepo)
	couponSvc := services.NewCouponService(couponRepo)
	checkoutSvc := services.NewCheckoutService(db, orderRepo, invRepo, addrRepo, couponSvc, pub)
	accountSvc := services.NewAccountService(orderRepo, addrRepo)
	invSvc := services.NewInventoryService(invRepo)
	reviewSvc := services.NewReviewService(reviewRepo, prodRepo)

	return &Deps{
		Auth:     authSvc,
		Checkout: checkoutSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc, SecureCookie: cfg.CookieSecure},
		CatalogHandler:   &CatalogHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, Inv: invSvc, Reviews: reviewSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		CartHandler: &CartHandler{
			Cart: cartSvc, Checkout: checkoutSvc, Account: accountSvc, SecureCookie: cfg.CookieSecure,
		},
		OrderHandler: &OrderHandler{Account: accountSvc, Reviews: reviewSvc},
		AdminHandler: &AdminHandler{
			Orders: orderRepo, Account: accountSvc, Inv: invSvc, Coupons: couponRepo, Users: userRepo,
		},
		APIHandler: &APIHandler{
			Genres: genreRepo, Artists: artistRepo, Products: prodRepo, Coupons: couponRepo,
			Orders: orderRepo, Reviews: reviewSvc, Addresses: addrRepo, Users: userRepo,
		},
	}
}
