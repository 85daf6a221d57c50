package domain

// Artifact is a raster file produced by a super-resolution run.
type Artifact struct {
	Name        string `json:"name"`
	Path        string `json:"-"`
	Size        int64  `json:"size"`
	SizeHuman   string `json:"size_human"`
	ContentType string `json:"content_type"`
}
