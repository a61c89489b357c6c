package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/adapters/storage"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// Presigner re-signs download URLs of remotely stored files.
type Presigner interface {
	Presign(ctx context.Context, key string) (string, error)
}

type fileHandlers struct {
	files     *storage.Pipeline
	maxBytes  int64
	presigner Presigner
}

type uploadForm struct {
	ConversationID string `form:"conversationId" binding:"required,max=128,conversationid"`
	UserID         string `form:"userId" binding:"required,max=128,participantid"`
	AudioType      string `form:"audioType" binding:"omitempty,alphanum,max=32"`
}

var (
	conversationIDChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	participantIDChars  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// registerValidations adds the id alphabets used by upload forms. Stored
// names and catalog keys rely on ids never carrying separators.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("conversationid", func(fl validator.FieldLevel) bool {
		return conversationIDChars.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("participantid", func(fl validator.FieldLevel) bool {
		return participantIDChars.MatchString(fl.Field().String())
	})
}

type regenerateRequest struct {
	FilePath string `json:"filePath" binding:"required"`
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func (h *fileHandlers) upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		fail(c, http.StatusBadRequest, "No audio file provided")
		return
	}
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, http.StatusBadRequest, "Missing or invalid conversationId or userId")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable upload")
		return
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Unreadable upload")
		return
	}
	head = head[:n]
	mime, err := storage.DetectAudio(head)
	if err != nil {
		log.Info().Str("module", "adapters.http").Str("mime", mime).Str("conversation", form.ConversationID).Msg("upload rejected")
		fail(c, http.StatusBadRequest, "Only audio files are allowed")
		return
	}

	stored, err := h.files.Upload(c.Request.Context(), io.MultiReader(bytes.NewReader(head), f), core.Upload{
		ConversationID: domain.ConversationID(form.ConversationID),
		ParticipantID:  domain.ParticipantID(form.UserID),
		Tag:            form.AudioType,
		OriginalName:   fh.Filename,
		ContentType:    mime,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("conversation", form.ConversationID).Msg("upload failed")
		fail(c, http.StatusInternalServerError, "Failed to upload audio file")
		return
	}

	log.Info().Str("module", "adapters.http").Str("conversation", form.ConversationID).Str("pid", form.UserID).
		Str("file", stored.Filename).Str("backend", stored.Backend).Str("client_token", c.GetString(signal.ClientTokenKey)).Msg("audio uploaded")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Audio file uploaded successfully",
		"fileInfo": stored,
	})
}

func (h *fileHandlers) list(c *gin.Context) {
	id := domain.ConversationID(c.Param("conversationId"))
	files, err := h.files.List(c.Request.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("conversation", string(id)).Msg("list files")
		fail(c, http.StatusInternalServerError, "Failed to get conversation files")
		return
	}
	if files == nil {
		files = []core.StoredFile{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *fileHandlers) download(c *gin.Context) {
	name := c.Param("filename")
	path, err := h.files.Local.Path(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		fail(c, http.StatusBadRequest, "Invalid file name")
		return
	case errors.Is(err, domain.ErrNotFound):
		fail(c, http.StatusNotFound, "File not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to download file")
		return
	}
	c.FileAttachment(path, name)
}

func (h *fileHandlers) regenerate(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "File path is required")
		return
	}
	if h.presigner == nil {
		fail(c, http.StatusServiceUnavailable, "Remote storage not available")
		return
	}
	url, err := h.presigner.Presign(c.Request.Context(), req.FilePath)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("key", req.FilePath).Msg("presign failed")
		fail(c, http.StatusInternalServerError, "Failed to regenerate signed URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"signedUrl": url})
}
