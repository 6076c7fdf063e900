package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"naa-posts/cmd/api/dto"
	"naa-posts/cmd/api/repositories"
	"naa-posts/cmd/api/services"
)

// ListPostsHandler godoc
// @Summary      List posts
// @Description  Filter, search and paginate posts, newest first
// @Tags         posts
// @Param        type          query  string  false  "Category, or \"All Posts\""
// @Param        status        query  string  false  "Status, or \"All Status\""
// @Param        search        query  string  false  "Case-insensitive match on title, description, author"
// @Param        page          query  int     false  "Page number (1-based)"  default(1)
// @Param        itemsPerPage  query  int     false  "Page size"              default(10)
// @Produce      json
// @Success      200  {object}  dto.PostListDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /posts [get]
func ListPostsHandler(svc *services.PostService) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := repositories.Filter{
			Type:   c.Query("type"),
			Status: c.Query("status"),
			Search: c.Query("search"),
		}
		f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
		f.ItemsPerPage, _ = strconv.Atoi(c.DefaultQuery("itemsPerPage", "10"))

		page, err := svc.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, err, http.StatusInternalServerError, "Failed to load posts")
			return
		}
		c.JSON(http.StatusOK, dto.PostListDTO{Posts: page.Posts, Total: page.Total})
	}
}

// GetPostHandler godoc
// @Summary      Get post
// @Tags         posts
// @Param        id   path  string  true  "Post id"
// @Produce      json
// @Success      200  {object}  models.Post
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /posts/{id} [get]
func GetPostHandler(svc *services.PostService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := postID(c)
		if !ok {
			return
		}
		post, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err, http.StatusInternalServerError, "Failed to load post")
			return
		}
		c.JSON(http.StatusOK, post)
	}
}

// CreatePostHandler godoc
// @Summary      Create post
// @Description  Accepts JSON (images as data URIs or URLs) or multipart/form-data (images as files).
// @Tags         posts
// @Accept       json,mpfd
// @Param        post  body  dto.PostRequestDTO  true  "Post fields"
// @Produce      json
// @Success      201  {object}  models.Post
// @Failure      400  {object}  dto.ErrorResponseDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /posts [post]
func CreatePostHandler(svc *services.PostService, maxFileBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := parsePayload(c, maxFileBytes)
		if !ok {
			return
		}
		post, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err, http.StatusBadRequest, "Failed to create post")
			return
		}
		c.JSON(http.StatusCreated, post)
	}
}

// UpdatePostHandler godoc
// @Summary      Update post
// @Description  Fields that are absent keep their stored value. Any gallery field replaces the gallery.
// @Tags         posts
// @Accept       json,mpfd
// @Param        id    path  string              true  "Post id"
// @Param        post  body  dto.PostRequestDTO  true  "Post fields"
// @Produce      json
// @Success      200  {object}  models.Post
// @Failure      400  {object}  dto.ErrorResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /posts/{id} [put]
func UpdatePostHandler(svc *services.PostService, maxFileBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := postID(c)
		if !ok {
			return
		}
		in, ok := parsePayload(c, maxFileBytes)
		if !ok {
			return
		}
		post, err := svc.Update(c.Request.Context(), id, in)
		if err != nil {
			writeError(c, err, http.StatusBadRequest, "Failed to update post")
			return
		}
		c.JSON(http.StatusOK, post)
	}
}

// DeletePostHandler godoc
// @Summary      Delete post
// @Description  Removes the post; its stored images are removed on a best-effort basis.
// @Tags         posts
// @Param        id   path  string  true  "Post id"
// @Produce      json
// @Success      200  {object}  dto.MessageResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /posts/{id} [delete]
func DeletePostHandler(svc *services.PostService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := postID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err, http.StatusInternalServerError, "Failed to delete post")
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponseDTO{Message: "Post deleted"})
	}
}
