package asset

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/storage"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetDownload streams the asset as an attachment named after the
// original upload. The download counter only moves once every byte was
// handed to the client.
func AssetDownload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := assetID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	a, err := d.Registry.GetServable(ctx, id, c.GetString("userID"))
	if err != nil {
		respondErr(c, err, "Failed to fetch asset")
		return
	}

	rc, err := d.Registry.Open(ctx, a)
	if err != nil {
		respondErr(c, err, "Failed to open asset")
		return
	}
	defer rc.Close()

	writeHeaders(c, a, "attachment")

	if _, err := io.Copy(c.Writer, rc); err != nil {
		zap.L().Warn("Download interrupted",
			zap.Uint("assetID", a.ID),
			zap.Error(err),
			zap.String("requestID", requestID),
		)
		return
	}

	// The client already has the file, count it even if it hung up since
	if err := d.Registry.IncrementDownloads(context.WithoutCancel(ctx), a.ID); err != nil {
		zap.L().Error("Failed to increment download count",
			zap.Uint("assetID", a.ID),
			zap.Error(err),
			zap.String("requestID", requestID),
		)
	}
}

// AssetView serves the asset inline for in-browser viewers. Backends that
// expose a direct URL get a redirect instead.
func AssetView(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := assetID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	a, err := d.Registry.GetServable(ctx, id, c.GetString("userID"))
	if err != nil {
		respondErr(c, err, "Failed to fetch asset")
		return
	}

	url, err := d.Registry.ResolveURL(ctx, a)
	if err != nil {
		respondErr(c, err, "Failed to resolve asset url")
		return
	}

	if url != "" {
		c.Redirect(http.StatusFound, url)
		return
	}

	rc, err := d.Registry.Open(ctx, a)
	if err != nil {
		respondErr(c, err, "Failed to open asset")
		return
	}
	defer rc.Close()

	writeHeaders(c, a, "inline")

	if _, err := io.Copy(c.Writer, rc); err != nil {
		zap.L().Debug("View interrupted", zap.Uint("assetID", a.ID), zap.Error(err), zap.String("requestID", requestID))
	}
}

func writeHeaders(c *gin.Context, a *model.Asset, disposition string) {
	c.Header("Content-Type", storage.MimeType(a.Extension))
	c.Header("Content-Length", strconv.FormatInt(a.SizeBytes, 10))
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{
		"filename": a.OriginalName,
	}))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
}
