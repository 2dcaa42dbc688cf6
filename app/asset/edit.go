package asset

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/registry"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

type editBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
	Tags        *string `json:"tags"`
}

func AssetEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	id, ok := assetID(c)
	if !ok {
		return
	}

	var data editBody
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if data.Name != nil && utf8.RuneCountInString(*data.Name) > maxNameLength {
		badRequest(c, "Name can't be longer than 100 characters")
		return
	}

	patch := registry.AssetPatch{
		Name:        data.Name,
		Description: data.Description,
		IsPublic:    data.IsPublic,
	}

	if data.Tags != nil {
		tags := model.ParseTags(*data.Tags)
		patch.Tags = &tags
	}

	a, err := d.Registry.Update(c.Request.Context(), id, userID, patch)
	if err != nil {
		if errors.Is(err, registry.ErrEmptyName) {
			badRequest(c, "Name can't be empty")
			return
		}

		respondErr(c, err, "Failed to update asset")
		return
	}

	c.JSON(http.StatusOK, a)
}
