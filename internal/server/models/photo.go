// Package models defines server-side data models persisted in the metadata index.
package models

import "time"

// PhotoRoutePrefix is the public base path of the photo endpoints.
const PhotoRoutePrefix = "/api/v1/photos"

// Photo is the metadata record of one stored photo. The bytes live in
// object storage under StorageKey.
type Photo struct {
	// ID is the logical photo identity handed out to callers.
	ID string `json:"id"`
	// StorageKey addresses the blob. It is never serialized to callers.
	StorageKey string `json:"-"`
	// OriginalFilename is the caller-supplied display name, possibly empty.
	// It must not be used as a filesystem path.
	OriginalFilename string `json:"originalFilename"`
	ContentType      string `json:"contentType"`
	// FileSize is the byte length streamed at upload time.
	FileSize   int64     `json:"fileSize"`
	UploadDate time.Time `json:"uploadDate"`
}

// PhotoResponse is the metadata lookup view of a Photo.
type PhotoResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	ViewURL          string    `json:"viewUrl"`
	DownloadURL      string    `json:"downloadUrl"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	UploadDate       time.Time `json:"uploadDate"`
}

// NewPhotoResponse builds the lookup view with view and download URLs.
func NewPhotoResponse(p *Photo) PhotoResponse {
	return PhotoResponse{
		ID:               p.ID,
		OriginalFilename: p.OriginalFilename,
		ViewURL:          PhotoRoutePrefix + "/view/" + p.ID,
		DownloadURL:      PhotoRoutePrefix + "/download/" + p.ID,
		ContentType:      p.ContentType,
		FileSize:         p.FileSize,
		UploadDate:       p.UploadDate,
	}
}
