package asset

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/storage"
	"bitwise74/model-vault/pkg/middleware"
	"bitwise74/model-vault/pkg/validators"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxNameLength = 100

func AssetUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fh, err := c.FormFile("file")
	if err != nil {
		switch {
		case middleware.IsBodyTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"reason":    validators.ReasonFileTooLarge,
				"requestID": requestID,
			})
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No file provided",
				"reason":    validators.ReasonNoFile,
				"requestID": requestID,
			})
		default:
			badRequest(c, "Invalid multipart form")
			zap.L().Debug("Failed to parse multipart form", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	isPublic := true
	if v := c.PostForm("isPublic"); v != "" {
		isPublic, err = strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "isPublic must be true or false")
			return
		}
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if utf8.RuneCountInString(name) > maxNameLength {
		badRequest(c, "Name can't be longer than 100 characters")
		return
	}

	v, err := validators.AssetValidator(fh, d.UploadRules)
	if err != nil {
		var ve *validators.ValidationError
		if errors.As(err, &ve) {
			c.JSON(ve.Status, gin.H{
				"error":     ve.Error(),
				"reason":    ve.Reason,
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to validate upload", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	defer v.File.Close()

	tags := model.ParseTags(c.PostForm("tags"))
	if len(tags) == 0 {
		tags = model.StringSlice{v.Extension}
	}

	a, err := d.Registry.Store(c.Request.Context(), registry.UploadInput{
		OwnerID:      userID,
		OriginalName: v.Filename,
		Name:         name,
		Description:  c.PostForm("description"),
		IsPublic:     isPublic,
		Tags:         tags,
		ContentType:  v.ContentType,
	}, v.File)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		if errors.Is(err, storage.ErrStorageWrite) {
			zap.L().Error("Failed to write asset to storage", zap.Error(err), zap.String("requestID", requestID))
		} else {
			zap.L().Error("Failed to save asset", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	zap.L().Info("Asset uploaded",
		zap.Uint("assetID", a.ID),
		zap.String("userID", userID),
		zap.Int64("size", a.SizeBytes),
		zap.String("requestID", requestID),
	)

	c.JSON(http.StatusCreated, a)
}
