package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/mkravch/media_library/internal/handlers"
	mwauth "github.com/mkravch/media_library/internal/middleware/auth"
)

type Deps struct {
	Auth  *handlers.AuthHandler
	Books *handlers.BookHandler
	Admin *handlers.AdminHandler
	Guard *mwauth.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	auth := e.Group("/api/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/forgot-password", d.Auth.ForgotPassword)
	auth.DELETE("/logout", d.Auth.Logout, d.Guard.RequireLogin)
	auth.GET("/me", d.Auth.Me, d.Guard.RequireLogin)

	books := e.Group("/api/books", d.Guard.RequireLogin)
	books.GET("/recent", d.Books.Recent)
	books.GET("/search", d.Books.Search)
	books.GET("/search-global", d.Books.SearchGlobal)
	books.POST("/borrow", d.Books.Borrow)
	books.POST("/return", d.Books.Return)
	books.GET("/history", d.Books.History)

	admin := e.Group("/api/admin", d.Guard.AdminOnly)
	admin.POST("/import", d.Admin.Import)
	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/books", d.Admin.AllBooks)
	admin.PUT("/books/:id", d.Admin.UpdateBook)
	admin.DELETE("/books/:id", d.Admin.DeleteBook)
}
