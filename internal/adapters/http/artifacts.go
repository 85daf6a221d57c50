package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/usecases"
	"github.com/samirrijal/superres/internal/pkg/artifacts"
)

// ArtifactList is the listing shown under a finished job.
type ArtifactList struct {
	JobID      string            `json:"job_id"`
	Files      []domain.Artifact `json:"files"`
	Count      int               `json:"count"`
	TotalBytes int64             `json:"total_bytes"`
	TotalHuman string            `json:"total_human"`
}

// ListArtifactsHandler lists the rasters in a job directory.
func ListArtifactsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		files, err := deps.Artifacts.List(c.UserContext(), id)
		if err != nil {
			return errServiceError(c, err)
		}

		total := artifacts.TotalSize(files)
		return c.JSON(ArtifactList{
			JobID:      id,
			Files:      files,
			Count:      len(files),
			TotalBytes: total,
			TotalHuman: artifacts.FormatSize(total),
		})
	}
}

// DownloadArtifactHandler streams a single raster.
func DownloadArtifactHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		rc, art, err := deps.Artifacts.Open(c.UserContext(), id, c.Params("name"))
		if err != nil {
			return errServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, art.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, art.Name))
		c.Set(fiber.HeaderCacheControl, "private, max-age=600")
		// fasthttp closes rc once the body is written.
		return c.SendStream(rc, int(art.Size))
	}
}

// PreviewArtifactHandler renders a PNG thumbnail of a raster.
func PreviewArtifactHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		size := c.QueryInt("size", usecases.DefaultThumbnailSize)

		data, err := deps.Artifacts.Thumbnail(c.UserContext(), id, c.Params("name"), size)
		if err != nil {
			return errServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "image/png")
		c.Set(fiber.HeaderCacheControl, "private, max-age=600")
		return c.Send(data)
	}
}

// ArchiveHandler streams a ZIP of every raster of the job.
func ArchiveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		archive, err := deps.Artifacts.Bundle(c.UserContext(), id)
		if err != nil {
			return errServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, archive.Name))
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.SendStream(archive.Reader, int(archive.Size))
	}
}

// ClearArtifactsHandler empties the job directory.
func ClearArtifactsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		if err := deps.Artifacts.Clear(c.UserContext(), id); err != nil {
			return errServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
