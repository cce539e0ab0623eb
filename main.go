package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"shopapi/internal/config"
	"shopapi/internal/database"
	"shopapi/internal/handlers"
	"shopapi/internal/middleware"
	"shopapi/internal/notify"
	"shopapi/internal/payment"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Println("⚠️ user index warning:", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Println("⚠️ cart index warning:", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Println("⚠️ order index warning:", err)
	}
	if err := database.EnsurePaymentIndexes(db); err != nil {
		log.Println("⚠️ payment index warning:", err)
	}
	if err := database.EnsureCouponIndexes(db); err != nil {
		log.Println("⚠️ coupon index warning:", err)
	}

	var publisher *notify.Publisher
	if config.AppEnv.AmqpURL != "" {
		publisher, err = notify.NewPublisher(config.AppEnv.AmqpURL)
		if err != nil {
			log.Println("⚠️ amqp unavailable, notifications disabled:", err)
		} else {
			defer publisher.Close()
		}
	}

	gateway := payment.NewClient(
		config.AppEnv.PaymentBaseURL,
		config.AppEnv.PaymentKeyID,
		config.AppEnv.PaymentKeySecret,
	)

	r := gin.Default()

	userAuth := middleware.RequireAuth(config.AppEnv.JWTSecret, "user", "admin")
	adminAuth := middleware.AdminAuth(config.AppEnv.JWTSecret)

	user := r.Group("/api/user")
	{
		user.POST("/register", handlers.Register(db))
		user.POST("/login", handlers.Login(
			db,
			config.AppEnv.JWTSecret,
			config.AppEnv.AccessTokenTTL,
			config.AppEnv.RefreshTokenTTL,
		))
		user.POST("/admin-login", handlers.AdminLogin(
			db,
			config.AppEnv.JWTSecret,
			config.AppEnv.AccessTokenTTL,
			config.AppEnv.RefreshTokenTTL,
		))
		user.GET("/refresh", handlers.Refresh(
			db,
			config.AppEnv.JWTSecret,
			config.AppEnv.AccessTokenTTL,
			config.AppEnv.RefreshTokenTTL,
		))
		user.GET("/logout", handlers.Logout(db))
		user.POST("/forgot-password-token", handlers.ForgotPasswordToken(db, publisher, config.AppEnv.ResetTokenTTL))
		user.PUT("/reset-password/:token", handlers.ResetPassword(db))

		user.PUT("/password", userAuth, handlers.UpdatePassword(db))
		user.PUT("/edit-user", userAuth, handlers.EditUser(db))
		user.PUT("/save-address", userAuth, handlers.SaveAddress(db))
		user.GET("/wishlist", userAuth, handlers.GetWishlist(db))

		user.POST("/cart", userAuth, handlers.AddToCart(db))
		user.GET("/cart", userAuth, handlers.GetCart(db))
		user.DELETE("/empty-cart", userAuth, handlers.EmptyCart(db))
		user.DELETE("/update-product-cart/:cartItemId/:newQuantity", userAuth, handlers.UpdateCartItemQuantity(db))
		user.DELETE("/delete-product-cart/:cartItemId", userAuth, handlers.RemoveCartItem(db))

		user.POST("/order/checkout", userAuth, handlers.Checkout(db, gateway))
		user.POST("/order/paymentVerification", userAuth, handlers.PaymentVerification(db, config.AppEnv.PaymentKeySecret))
		user.POST("/cart/create-order", userAuth, handlers.CreateOrderFromCart(db, publisher))
		user.GET("/getmyorders", userAuth, handlers.GetMyOrders(db))

		user.GET("/all-users", adminAuth, handlers.GetAllUsers(db))
		user.GET("/getallorders", adminAuth, handlers.GetAllOrders(db))
		user.GET("/getOrder/:id", adminAuth, handlers.GetOrder(db))
		user.PUT("/updateOrder/:id", adminAuth, handlers.UpdateOrderStatus(db))
		user.GET("/getMonthWiseOrderIncome", adminAuth, handlers.MonthWiseOrderIncome(db))
		user.GET("/getyearlyorders", adminAuth, handlers.YearlyOrders(db))
		user.PUT("/block-user/:id", adminAuth, handlers.BlockUser(db))
		user.PUT("/unblock-user/:id", adminAuth, handlers.UnblockUser(db))
		user.GET("/:id", adminAuth, handlers.GetUser(db))
		user.DELETE("/:id", adminAuth, handlers.DeleteUser(db))
	}

	product := r.Group("/api/product")
	{
		product.GET("/", handlers.GetAllProducts(db))
		product.PUT("/wishlist", userAuth, handlers.ToggleWishlist(db))
		product.GET("/:id", handlers.GetProduct(db))

		product.POST("/", adminAuth, handlers.CreateProduct(db))
		product.PUT("/:id", adminAuth, handlers.UpdateProduct(db))
		product.DELETE("/:id", adminAuth, handlers.DeleteProduct(db))
	}

	coupon := r.Group("/api/coupon")
	coupon.Use(adminAuth)
	{
		coupon.POST("/", handlers.CreateCoupon(db))
		coupon.GET("/", handlers.GetAllCoupons(db))
		coupon.PUT("/:id", handlers.UpdateCoupon(db))
		coupon.DELETE("/:id", handlers.DeleteCoupon(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
