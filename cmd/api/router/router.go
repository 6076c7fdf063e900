package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"naa-posts/cmd/api/dto"
	"naa-posts/cmd/api/handlers"
	"naa-posts/cmd/api/middleware"
	"naa-posts/cmd/api/services"
	_ "naa-posts/docs"
)

// Deps is everything the HTTP surface needs, built once in main.
type Deps struct {
	Posts   *services.PostService
	Uploads *services.UploadService
	Store   handlers.Pinger

	StorageName string
	UploadsName string

	// FilesDir is served at FilesURLPrefix when set.
	FilesDir       string
	FilesURLPrefix string

	MaxBodyBytes int64
	MaxFileBytes int64
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	// the limit wraps the body before anything reads it
	r.Use(gin.Recovery(), middleware.BodyLimit(d.MaxBodyBytes), middleware.RequestTrace())

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponseDTO{Error: "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponseDTO{Error: "Not found"})
	})

	r.GET("/", handlers.IndexHandler())
	r.GET("/health", handlers.HealthHandler(d.Store, d.StorageName, d.UploadsName))

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if d.FilesDir != "" && d.FilesURLPrefix != "" {
		r.Static(d.FilesURLPrefix, d.FilesDir)
	}

	// every route is mounted bare and under /api
	for _, prefix := range []string{"", "/api"} {
		g := r.Group(prefix)
		{
			g.GET("/posts", handlers.ListPostsHandler(d.Posts))
			g.GET("/posts/:id", handlers.GetPostHandler(d.Posts))
			g.POST("/posts", handlers.CreatePostHandler(d.Posts, d.MaxFileBytes))
			g.PUT("/posts/:id", handlers.UpdatePostHandler(d.Posts, d.MaxFileBytes))
			g.DELETE("/posts/:id", handlers.DeletePostHandler(d.Posts))

			g.POST("/create-post", handlers.CreatePostHandler(d.Posts, d.MaxFileBytes))
			g.PUT("/update-post", handlers.UpdatePostHandler(d.Posts, d.MaxFileBytes))
			g.DELETE("/delete-post", handlers.DeletePostHandler(d.Posts))

			g.POST("/upload", handlers.UploadHandler(d.Uploads, d.MaxFileBytes))
			g.POST("/ut-upload", handlers.UploadProxyHandler(d.Uploads))
		}
	}

	return r
}

// Handler is the engine behind the CORS policy. Use it as the server handler.
func Handler(d Deps) http.Handler {
	return middleware.CORS(New(d))
}
