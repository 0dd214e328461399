package models

import "time"

// Image is the metadata row for a user's profile picture.
type Image struct {
	ID          string
	UserID      string
	FileName    string
	StorageKey  string
	URL         string
	ContentType string
	UploadDate  time.Time
}

// ImageResponse is the public projection of an Image.
type ImageResponse struct {
	FileName   string `json:"file_name"`
	ID         string `json:"id"`
	URL        string `json:"url"`
	UploadDate string `json:"upload_date"`
	UserID     string `json:"user_id"`
}

func (i Image) Public(loc *time.Location) ImageResponse {
	return ImageResponse{
		FileName:   i.FileName,
		ID:         i.ID,
		URL:        i.URL,
		UploadDate: i.UploadDate.In(loc).Format(DisplayTimeFormat),
		UserID:     i.UserID,
	}
}
