package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackit/internal/service"
)

type UploadResponse struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

func (h *Handler) uploadImage(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	upload, err := h.svc.Uploads.UploadImage(
		c.Request.Context(),
		currentUser(c),
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadToResponse(*upload))
}

func (h *Handler) listUploads(c *gin.Context) {
	uploads, err := h.svc.Uploads.ListImages(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UploadResponse, len(uploads))
	for i := range uploads {
		resp[i] = uploadToResponse(uploads[i])
	}
	c.JSON(http.StatusOK, resp)
}

func uploadToResponse(u service.Upload) UploadResponse {
	return UploadResponse{
		Key:      u.Key,
		Location: u.Location,
		URL:      u.URL,
		Size:     u.Size,
	}
}
