package api

import (
	"allocbacktest/internal/app"
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type ApiHandler struct {
	BacktestApp   app.BacktestApp
	AssetRegistry *domain.AssetRegistry
}

func (m ApiHandler) Router() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(requestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to allocbacktest"})
	})
	router.GET("/assets", m.listAssets)
	router.POST("/backtest", m.backtest)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.Router().Run(fmt.Sprintf(":%d", port))
}

// errorStatus maps our error kinds onto http codes, anything unexpected
// is a 500
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMissingAsset), errors.Is(err, domain.ErrDataGap):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, errorStatus(err))
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	lg := logger.FromContext(c.Request.Context())
	if code >= 500 {
		lg.Error(err.Error())
	} else {
		lg.Warn(err.Error())
	}
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

// requestMiddleware tags every request with an id, and hands handlers a
// logger carrying it
func requestMiddleware(c *gin.Context) {
	requestID := uuid.New()
	c.Writer.Header().Set(requestIDHeader, requestID.String())

	lg := logger.FromContext(c.Request.Context()).With("requestID", requestID.String())
	c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), lg))

	start := time.Now()
	c.Next()

	lg.Infow("handled request",
		"method", c.Request.Method,
		"route", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
	)
}
