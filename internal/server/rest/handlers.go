package rest

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/biterate/internal/common"
	"github.com/dmitrijs2005/biterate/internal/logging"
	"github.com/dmitrijs2005/biterate/internal/server/models"
	"github.com/dmitrijs2005/biterate/internal/server/services"
)

const uploadFieldName = "file"

var errNoFilePart = errors.New(`multipart field "file" is required`)

type handlers struct {
	photos         Photos
	logger         logging.Logger
	maxUploadBytes int64
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// upload streams the "file" part straight into the service without
// buffering the multipart form.
func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	part, err := filePart(c.Request)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.abortWithError(c, err)
			return
		}
		h.logger.Debug(c.Request.Context(), "bad multipart upload", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
		return
	}
	defer part.Close()

	photo, err := h.photos.Upload(c.Request.Context(), services.UploadInput{
		Content:     part,
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        -1,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, photo)
}

func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadFieldName {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *handlers) view(c *gin.Context) {
	photo, rc, err := h.photos.Retrieve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := photo.ContentType
	if contentType == "" {
		contentType = common.DefaultContentType
	}
	c.DataFromReader(http.StatusOK, photo.FileSize, contentType, rc, nil)
}

func (h *handlers) download(c *gin.Context) {
	photo, rc, err := h.photos.Retrieve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, photo.FileSize, common.DefaultContentType, rc, map[string]string{
		"Content-Disposition": contentDisposition(photo.OriginalFilename, photo.ID),
	})
}

func (h *handlers) info(c *gin.Context) {
	photo, err := h.photos.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPhotoResponse(photo))
}

func (h *handlers) deleteBlob(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.photos.DeleteBlob(c.Request.Context(), key); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) deletePhoto(c *gin.Context) {
	if err := h.photos.DeletePhoto(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// attachmentName reduces a caller-supplied filename to a safe quoted-string
// value: the base name with quotes, backslashes and control characters
// dropped. Falls back to fallback when nothing usable remains.
func attachmentName(filename, fallback string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	var b strings.Builder
	for _, r := range filename {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\\' || r > 0x7e {
			continue
		}
		b.WriteRune(r)
	}
	name := strings.TrimSpace(b.String())
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}

// contentDisposition adds an RFC 5987 filename* parameter when the original
// name does not survive ASCII reduction.
func contentDisposition(filename, id string) string {
	name := attachmentName(filename, id)
	v := `attachment; filename="` + name + `"`
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	if filename != "" && filename != name {
		v += "; filename*=UTF-8''" + url.PathEscape(filename)
	}
	return v
}
