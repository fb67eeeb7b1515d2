package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	app "wallserv/src/app"
)

// PostImages accepts a single record or an array of records.
func (a *AppHandler) PostImages(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		a.respondError(c, badRequest("can not read request body"))
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		a.respondError(c, badRequest("request body is empty"))
		return
	}

	if raw[0] == '[' {
		var inputs []app.ImageInput
		if err := json.Unmarshal(raw, &inputs); err != nil {
			a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
			return
		}
		images, err := a.images.CreateMany(c.Request.Context(), inputs)
		if err != nil {
			a.respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, "Images created successfully", images)
		return
	}

	var input app.ImageInput
	if err := json.Unmarshal(raw, &input); err != nil {
		a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	image, err := a.images.CreateOne(c.Request.Context(), input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Image created successfully", image)
}

// GetImages lists everything, or one page when page or limit is given.
func (a *AppHandler) GetImages(c *gin.Context) {
	_, hasPage := c.GetQuery("page")
	_, hasLimit := c.GetQuery("limit")
	if hasPage || hasLimit {
		a.PaginateImages(c)
		return
	}
	images, err := a.images.List(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Images fetched successfully", images)
}

func (a *AppHandler) PaginateImages(c *gin.Context) {
	req := app.ParsePageRequest(c.Query("page"), c.Query("limit"))
	page, err := a.images.Paginate(c.Request.Context(), req)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Images paginated successfully", page)
}

func (a *AppHandler) GetImage(c *gin.Context) {
	image, err := a.images.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Image fetched successfully", image)
}

func (a *AppHandler) PutImage(c *gin.Context) {
	var update app.ImageUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	image, err := a.images.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Image updated successfully", image)
}

func (a *AppHandler) DeleteImage(c *gin.Context) {
	image, err := a.images.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Image deleted successfully", image)
}

func (a *AppHandler) GetImagesByCategory(c *gin.Context) {
	category := c.Param("category")
	images, err := a.images.ByCategory(c.Request.Context(), category)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Images fetched successfully for category: "+category, images)
}

func (a *AppHandler) CountImagesByCategory(c *gin.Context) {
	category := c.Param("category")
	count, err := a.images.CountByCategory(c.Request.Context(), category)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Image count fetched successfully", gin.H{"category": category, "count": count})
}

func (a *AppHandler) GetImagesByTag(c *gin.Context) {
	tag := c.Param("tag")
	images, err := a.images.ByTag(c.Request.Context(), tag)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Images fetched successfully for tag: "+tag, images)
}

func (a *AppHandler) GetFeaturedImages(c *gin.Context) {
	images, err := a.images.Featured(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Featured images fetched successfully", images)
}

func (a *AppHandler) GetCategories(c *gin.Context) {
	categories, err := a.images.Categories(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Categories fetched successfully", categories)
}

func (a *AppHandler) SearchImages(c *gin.Context) {
	images, err := a.images.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Search results fetched successfully", images)
}

func (a *AppHandler) GetRandomImages(c *gin.Context) {
	images, err := a.images.Random(c.Request.Context(), app.ParseRandomLimit(c.Query("limit")))
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Random images fetched successfully", images)
}

func (a *AppHandler) ViewImage(c *gin.Context) {
	a.increment(c, app.CounterViews, "View recorded")
}

func (a *AppHandler) LikeImage(c *gin.Context) {
	a.increment(c, app.CounterLikes, "Like recorded")
}

func (a *AppHandler) increment(c *gin.Context, counter app.Counter, message string) {
	image, err := a.images.Increment(c.Request.Context(), c.Param("id"), counter)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, message, image)
}
