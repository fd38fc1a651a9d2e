package model

type ImageResponse struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Format     string `json:"format"`
	Size       int    `json:"size"`
	Handle     string `json:"handle"`
	PreviewURL string `json:"preview_url"`
}

type FailureResponse struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type ConvertResponse struct {
	Format   string            `json:"format"`
	Progress []int             `json:"progress"`
	Images   []ImageResponse   `json:"images"`
	Failures []FailureResponse `json:"failures"`
	Skipped  int               `json:"skipped"`
	Message  string            `json:"message"`
}

type DownloadRequest struct {
	Format  string   `json:"format"`
	Handles []string `json:"handles"`
}

type FormatResponse struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

type ObjectListResponse struct {
	Keys []string `json:"keys"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
