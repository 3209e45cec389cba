package transport

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/codec"
	"github.com/ds124wfegd/imagestudio/internal/pkg/export"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
	"github.com/gin-gonic/gin"
)

func (h *SessionHandler) CreateSession(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		writeError(c, err)
		return
	}

	st, state, err := h.service.Create(data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     st.ID(),
		"width":  state.Width,
		"height": state.Height,
		"state":  state,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st.State())
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

// ReplaceImage loads a new source image and starts a fresh history.
func (h *SessionHandler) ReplaceImage(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	data, err := h.readImage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	state, err := st.Upload(data)
	h.respondState(c, state, err)
}

func (h *SessionHandler) ApplyEdit(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}

	var in entity.Intent
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		return
	}
	state, err := st.Apply(in)
	h.respondState(c, state, err)
}

// ApplyImageEdit handles the edits that carry an image, sent as multipart.
func (h *SessionHandler) ApplyImageEdit(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}

	kind := entity.Kind(c.Param("type"))
	if !kind.NeedsRaster() {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: fmt.Sprintf("%s edits are sent as JSON", kind)})
		return
	}

	data, err := h.readImage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	img, err := codec.Decode(data)
	if err != nil {
		writeError(c, err)
		return
	}
	state, err := st.Apply(entity.Intent{Type: kind, Raster: img})
	h.respondState(c, state, err)
}

func (h *SessionHandler) Undo(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	state, err := st.Undo()
	h.respondState(c, state, err)
}

func (h *SessionHandler) Redo(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	state, err := st.Redo()
	h.respondState(c, state, err)
}

func (h *SessionHandler) Clear(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	state, err := st.Clear()
	h.respondState(c, state, err)
}

func (h *SessionHandler) Preview(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}

	img, err := st.Render(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := export.Encode(img.Image(), entity.FormatPNG, 1)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, entity.FormatPNG.MIMEType(), data)
}

func (h *SessionHandler) Export(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}

	quality, err := queryQuality(c)
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := st.Export(c.Request.Context(), entity.ExportRequest{
		Format:  c.Query("format"),
		Quality: quality,
		Name:    c.Query("name"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	sendFile(c, file)
}

func (h *SessionHandler) Archive(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}

	formats, err := entity.ParseFormats(c.DefaultQuery("formats", "png,jpg,webp"))
	if err != nil {
		writeError(c, &entity.ValidationError{Kind: "export", Field: "formats", Reason: err.Error()})
		return
	}
	quality, err := queryQuality(c)
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := st.ExportArchive(c.Request.Context(), formats, quality, c.Query("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	sendFile(c, file)
}

func (h *SessionHandler) RemoveBackground(c *gin.Context) {
	st, ok := h.session(c)
	if !ok {
		return
	}
	state, err := st.RemoveBackground(c.Request.Context())
	h.respondState(c, state, err)
}

func (h *SessionHandler) session(c *gin.Context) (*studio.Studio, bool) {
	st, err := h.service.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return st, true
}

// respondState answers with the session state, adding it to the error body
// when the action was refused so the UI can resync.
func (h *SessionHandler) respondState(c *gin.Context, state entity.SessionState, err error) {
	if err == nil {
		c.JSON(http.StatusOK, state)
		return
	}
	_ = c.Error(err)

	body := gin.H{"error": err.Error(), "state": state}
	var gerr *entity.GatewayError
	if errors.As(err, &gerr) && gerr.Status != 0 {
		body["upstream_status"] = gerr.Status
	}
	c.JSON(statusFor(err), body)
}

// readImage reads the multipart "image" field, bounded by the upload limit.
func (h *SessionHandler) readImage(c *gin.Context) ([]byte, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var mberr *http.MaxBytesError
		if errors.As(err, &mberr) || strings.Contains(err.Error(), "request body too large") {
			return nil, entity.ErrUploadTooLarge
		}
		return nil, &entity.ValidationError{Kind: "upload", Field: "image", Reason: "no image file provided"}
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return nil, entity.ErrUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func queryQuality(c *gin.Context) (*float64, error) {
	raw := c.Query("quality")
	if raw == "" {
		return nil, nil
	}
	q, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &entity.ValidationError{Kind: "export", Field: "quality", Reason: "not a number"}
	}
	return &q, nil
}

func sendFile(c *gin.Context, file entity.ExportFile) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	c.Data(http.StatusOK, file.MIME, file.Data)
}
