package handler

import (
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// maxMemory is the part of a multipart body kept in memory.
const maxMemory = 32 << 20

// DocumentHandler handles document uploads.
type DocumentHandler struct {
	svc *biz.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(svc *biz.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload stores PDFs and images in a session.
//
// @Summary      Upload documents
// @Description  Extracts text from PDFs and images. Creates a session when session_id is omitted. Unsupported files are skipped.
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        files       formData  file    true   "Documents"
// @Param        session_id  query     string  false  "Existing session ID"
// @Success      200         {object}  model.UploadResponse
// @Failure      400         {object}  response.ErrorResponse
// @Failure      404         {object}  response.ErrorResponse
// @Failure      413         {object}  response.ErrorResponse
// @Router       /api/v1/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Fail(c, errors.ErrNoFiles.WithCause(err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Fail(c, errors.ErrNoFiles)
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = c.PostForm("session_id")
	}

	files := make([]biz.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	resp, err := h.svc.Upload(c.Request.Context(), sessionID, files)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, resp)
}

func uploadFile(fh *multipart.FileHeader) biz.UploadFile {
	return biz.UploadFile{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
