package dto

import "time"

// UploadTarget is the destination a client sends image bytes to.
type UploadTarget struct {
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadResult is returned by the object store after a successful upload.
type UploadResult struct {
	StorageID string `json:"storageId"`
}
