package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"qwqvpn/internal/middleware"
)

// Setup configures the Echo server: a health endpoint and, when running in
// webhook mode, the Telegram webhook mount behind update deduplication.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	deduper middleware.UpdateDeduper,
	webhookHandler http.Handler,
) {
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if webhookHandler != nil {
		e.POST("/telegram/webhook",
			echo.WrapHandler(webhookHandler),
			middleware.TelegramUpdateDedup(deduper))
	}
}
