package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	app "wallserv/src/app"
)

const uploadFormField = "image"

// UploadImage takes a multipart form: the file under "image" plus the
// metadata fields of the create payload.
func (a *AppHandler) UploadImage(c *gin.Context) {
	if c.Request.ContentLength > a.maxUploadSize {
		a.respondError(c, fmt.Errorf("%w: limit is %d bytes", app.ErrTooLarge, a.maxUploadSize))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadSize)

	file, header, err := c.Request.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.respondError(c, fmt.Errorf("%w: limit is %d bytes", app.ErrTooLarge, a.maxUploadSize))
			return
		}
		a.respondError(c, badRequest("can not find image in request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.respondError(c, badRequest("failed to read file"))
		return
	}

	meta, err := uploadMeta(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	image, err := a.images.Upload(c.Request.Context(), app.Upload{
		Filename: header.Filename,
		Data:     data,
		Meta:     meta,
	})
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Image uploaded successfully", image)
}

func uploadMeta(c *gin.Context) (app.ImageInput, error) {
	meta := app.ImageInput{
		ImageName:   c.PostForm("imageName"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	}
	for _, raw := range c.PostFormArray("tags") {
		meta.Tags = append(meta.Tags, strings.Split(raw, ",")...)
	}
	if raw := c.PostForm("isFeatured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return meta, &app.ValidationError{Index: -1, Field: "isFeatured", Reason: "must be a boolean"}
		}
		meta.IsFeatured = featured
	}
	width, height := c.PostForm("width"), c.PostForm("height")
	if width != "" || height != "" {
		w, werr := strconv.Atoi(width)
		h, herr := strconv.Atoi(height)
		if werr != nil || herr != nil {
			return meta, &app.ValidationError{Index: -1, Field: "resolution", Reason: "width and height must be integers"}
		}
		meta.Resolution = &app.Resolution{Width: w, Height: h}
	}
	return meta, nil
}

// DownloadImage counts the download and hands out the URL to fetch. With
// redirect=true the client is sent there directly.
func (a *AppHandler) DownloadImage(c *gin.Context) {
	url, image, err := a.images.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if redirect, _ := strconv.ParseBool(c.Query("redirect")); redirect {
		c.Redirect(http.StatusFound, url)
		return
	}
	respond(c, http.StatusOK, "Download URL generated successfully", gin.H{
		"url":       url,
		"downloads": image.Downloads,
	})
}
