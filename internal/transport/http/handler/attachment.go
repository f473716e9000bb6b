package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-chatbot/internal/app"
	"ai-chatbot/internal/storage"
	"ai-chatbot/internal/transport/http/response"
)

type AttachmentHandler struct {
	attachmentService *app.AttachmentService
}

func NewAttachmentHandler(attachmentService *app.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// Upload accepts a multipart form with a single "file" part and attaches
// it to the message in the URL.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chatID, ok := paramID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid message id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file part")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(app.UploadAttachmentInput{
		UserID:    userID,
		ChatID:    chatID,
		MessageID: messageID,
		Filename:  fileHeader.Filename,
		Size:      fileHeader.Size,
		Reader:    file,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput),
			errors.Is(err, storage.ErrFileTooLarge),
			errors.Is(err, storage.ErrTypeNotAllowed):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		case errors.Is(err, app.ErrMessageNotFound):
			response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload attachment failed")
		}
		return
	}

	response.Created(c, attachment)
}

// ListForMessage returns the attachments on one message of the caller's
// chat.
func (h *AttachmentHandler) ListForMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chatID, ok := paramID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid message id")
		return
	}

	attachments, err := h.attachmentService.ListForMessage(userID, chatID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		case errors.Is(err, app.ErrMessageNotFound):
			response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list attachments failed")
		}
		return
	}

	response.OK(c, attachments)
}

func (h *AttachmentHandler) Download(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	attachmentID, ok := paramID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid attachment id")
		return
	}

	attachment, err := h.attachmentService.Get(userID, attachmentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrAttachmentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAttachmentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get attachment failed")
		}
		return
	}

	c.Header("Content-Type", attachment.FileType)
	c.FileAttachment(attachment.StoredPath, attachment.Filename)
}

func (h *AttachmentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	attachmentID, ok := paramID(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid attachment id")
		return
	}

	if err := h.attachmentService.Delete(userID, attachmentID); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrAttachmentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeAttachmentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete attachment failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_attachment_id": attachmentID})
}
