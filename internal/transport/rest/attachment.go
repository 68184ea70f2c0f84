package rest

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxAttachmentSize = 10 << 20

// @Summary Загрузка вложения
// @Description Загружает файл вложения для чата и возвращает его URL
// @Tags Чат
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл вложения"
// @Success 201 {object} successResponseBody "URL загруженного файла"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 500 {object} errorResponseBody "Внутренняя ошибка сервера"
// @Security ApiKeyAuth
// @Router /chat/attachments [post]
func (h *Handler) uploadAttachment(c *gin.Context) {
	if h.fileStorage == nil {
		errorResponse(c, http.StatusServiceUnavailable, "хранилище файлов не настроено")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequestResponse(c, "файл не передан")
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		badRequestResponse(c, "файл слишком большой")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("ошибка при открытии файла", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		h.logger.Error("ошибка при чтении файла", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}
	if len(data) > maxAttachmentSize {
		badRequestResponse(c, "файл слишком большой")
		return
	}

	url, err := h.fileStorage.UploadFile(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		h.logger.Error("ошибка при загрузке вложения", zap.Error(err))
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	createdResponse(c, gin.H{"url": url})
}
