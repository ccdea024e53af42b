package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/offline"
	"github.com/jerry-enebeli/offline/api/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	offline *offline.Offline
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/actions", a.GetActions)
	router.GET("/actions/stats", a.GetStats)
	router.GET("/actions/:id", a.GetAction)
	router.POST("/actions", a.EnqueueAction)
	router.DELETE("/actions/:id", a.DequeueAction)
	router.DELETE("/actions", a.ClearActions)

	router.POST("/actions/process", a.ProcessQueue)
	router.POST("/actions/retry", a.RetryActions)
	router.POST("/actions/sync", a.TriggerSync)
	return a.router
}

func NewAPI(o *offline.Offline) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf := o.Config()

	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger())
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{offline: o, router: r}
}
