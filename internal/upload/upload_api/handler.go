package upload_api

import (
	"fmt"
	"net/http"

	"verbs-tickets/internal/blob"
	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/utils"
)

const (
	maxImageBytes = 5 << 20  // 5MB
	maxAudioBytes = 50 << 20 // 50MB
	maxFormMemory = 10 << 20
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var audioTypes = map[string]bool{
	"audio/mpeg":   true,
	"audio/aiff":   true,
	"audio/wav":    true,
	"audio/x-aiff": true,
}

type Handler struct {
	blob   *blob.Client
	logger *logger.Logger
}

func NewHandler(blobClient *blob.Client, log *logger.Logger) *Handler {
	return &Handler{blob: blobClient, logger: log}
}

// Upload handles POST /api/upload. The multipart form carries the file and a
// "type" field of "image" or "audio"; the stored blob URL comes back as
// {"url": ...}. Auth is enforced by the admin middleware in front of this.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes+maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	kind := r.FormValue("type")
	if kind == "" {
		kind = "image"
	}
	if kind != "image" && kind != "audio" {
		utils.WriteError(w, http.StatusBadRequest, "Invalid upload type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	switch kind {
	case "image":
		if !imageTypes[contentType] {
			utils.WriteError(w, http.StatusBadRequest, "Invalid file type")
			return
		}
		if header.Size > maxImageBytes {
			utils.WriteError(w, http.StatusBadRequest, "File must be under 5MB")
			return
		}
	case "audio":
		if !audioTypes[contentType] {
			utils.WriteError(w, http.StatusBadRequest, "Invalid file type")
			return
		}
		if header.Size > maxAudioBytes {
			utils.WriteError(w, http.StatusBadRequest, "File must be under 50MB")
			return
		}
	}

	pathname := utils.GenerateBlobPathname(kind, header.Filename)
	result, err := h.blob.Put(r.Context(), pathname, file, contentType)
	if err != nil {
		h.logger.Error("UPLOAD", fmt.Sprintf("Blob upload failed for %s: %v", pathname, err))
		utils.WriteError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": result.URL})
}
