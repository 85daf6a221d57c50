// Package artifacts manages the output directory of a super-resolution run:
// creating and resetting it, discovering the raster files it holds, and
// bundling them into a ZIP archive for download.
//
// All filesystem access goes through an afero.Fs so the same code runs on the
// OS filesystem in production and on an in-memory filesystem in tests.
//
//	store := artifacts.NewStore(afero.NewOsFs())
//	dir, _ := store.EnsureDirectory("output_images/job-1")
//	files, _ := store.ListArtifacts(dir)
//	zip, _ := store.Bundle(dir)
package artifacts
