package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/pkg/geospatial"
)

const (
	defaultPreviewRadius = 5000.0
	maxPreviewRadius     = 100000.0
	maxJobHistory        = 500
)

// Coordinate is one point in both notations.
type Coordinate struct {
	Lat     float64        `json:"lat"`
	Lon     float64        `json:"lon"`
	LatDMS  geospatial.DMS `json:"lat_dms"`
	LonDMS  geospatial.DMS `json:"lon_dms"`
	Display string         `json:"display"`
	Valid   bool           `json:"valid"`
}

// PreviewResponse describes the map area shown around a point.
type PreviewResponse struct {
	Center  Coordinate        `json:"center"`
	Radius  float64           `json:"radius_m"`
	Bounds  geospatial.Bounds `json:"bounds"`
	Message string            `json:"message,omitempty"`
}

// SubmitJobRequest accepts either decimal or DMS coordinates.
type SubmitJobRequest struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	LatDMS string   `json:"lat_dms"`
	LonDMS string   `json:"lon_dms"`
	Date   string   `json:"date"`
}

func newCoordinate(lat, lon float64) Coordinate {
	latDMS := geospatial.ToDMS(lat, geospatial.Latitude)
	lonDMS := geospatial.ToDMS(lon, geospatial.Longitude)
	return Coordinate{
		Lat:     lat,
		Lon:     lon,
		LatDMS:  latDMS,
		LonDMS:  lonDMS,
		Display: latDMS.String() + " " + lonDMS.String(),
		Valid:   geospatial.ValidateCoordinates(lat, lon),
	}
}

// resolvePoint reads a point from decimal values or DMS strings. DMS wins
// when both are present.
func resolvePoint(lat, lon *float64, latDMS, lonDMS string) (float64, float64, error) {
	if latDMS != "" || lonDMS != "" {
		la, err := geospatial.ParseDMSAxis(latDMS, geospatial.Latitude)
		if err != nil {
			return 0, 0, err
		}
		lo, err := geospatial.ParseDMSAxis(lonDMS, geospatial.Longitude)
		if err != nil {
			return 0, 0, err
		}
		return la.Decimal(), lo.Decimal(), nil
	}
	if lat == nil || lon == nil {
		return 0, 0, domain.ErrInvalidCoordinates
	}
	return *lat, *lon, nil
}

// queryPoint reads lat/lon or lat_dms/lon_dms from the query string.
func queryPoint(c *fiber.Ctx) (float64, float64, error) {
	var lat, lon *float64
	if s := c.Query("lat"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, 0, domain.ErrInvalidCoordinates
		}
		lat = &v
	}
	if s := c.Query("lon"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, 0, domain.ErrInvalidCoordinates
		}
		lon = &v
	}
	return resolvePoint(lat, lon, c.Query("lat_dms"), c.Query("lon_dms"))
}

// ConvertCoordinatesHandler converts between decimal degrees and DMS.
// Out-of-range points are returned with valid=false.
func ConvertCoordinatesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, "provide lat & lon or lat_dms & lon_dms: "+err.Error())
		}
		return c.JSON(newCoordinate(lat, lon))
	}
}

// PreviewHandler returns the bounding box of the area to be processed.
func PreviewHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, "provide lat & lon or lat_dms & lon_dms: "+err.Error())
		}
		if !geospatial.ValidateCoordinates(lat, lon) {
			return errBadRequest(c, domain.ErrInvalidCoordinates.Error())
		}

		radius := c.QueryFloat("radius", defaultPreviewRadius)
		if radius <= 0 || radius > maxPreviewRadius {
			return errBadRequest(c, "radius must be in (0, 100000] meters")
		}

		center := newCoordinate(lat, lon)
		return c.JSON(PreviewResponse{
			Center:  center,
			Radius:  radius,
			Bounds:  geospatial.BoundingBox(lat, lon, radius),
			Message: "Selected location: " + center.Display,
		})
	}
}

// SubmitJobHandler validates the request and queues a super-resolution job.
func SubmitJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SubmitJobRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		lat, lon, err := resolvePoint(req.Lat, req.Lon, req.LatDMS, req.LonDMS)
		if err != nil {
			return errServiceError(c, err)
		}

		job, err := deps.Processing.Submit(c.UserContext(), domain.GeoPoint{Lat: lat, Lon: lon}, req.Date)
		if err != nil && job == nil {
			return errServiceError(c, err)
		}
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("job could not be scheduled", "job_id", job.ID, "error", err)
		}

		c.Location("/v1/jobs/" + job.ID)
		return c.Status(fiber.StatusAccepted).JSON(job)
	}
}

// ListJobsHandler returns the job history, newest first.
func ListJobsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jobs, err := deps.Processing.List(c.UserContext(), maxJobHistory)
		if err != nil {
			return errServiceError(c, err)
		}

		offset, limit := parsePagination(c, 20, 100)
		pg := Pagination{Offset: offset, Limit: limit, Total: len(jobs)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page(jobs, offset, limit), Pagination: pg})
	}
}

// NearbyJobsHandler returns previous jobs around a point.
func NearbyJobsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", defaultPreviewRadius)
		limit := c.QueryInt("limit", 20)

		jobs, err := deps.Processing.Nearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			if radius <= 0 {
				return errBadRequest(c, err.Error())
			}
			return errServiceError(c, err)
		}
		return c.JSON(jobs)
	}
}

// GetJobHandler returns a job with its progress.
func GetJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := jobID(c)
		if !ok {
			return errNotFound(c, domain.ErrJobNotFound.Error())
		}
		job, err := deps.Processing.Get(c.UserContext(), id)
		if err != nil {
			return errServiceError(c, err)
		}
		return c.JSON(job)
	}
}

// jobID returns the :id param if it is a well-formed job ID.
func jobID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
