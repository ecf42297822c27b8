package domain

import "time"

// DownloadStatus enumerates acquisition outcomes persisted per pk.
type DownloadStatus string

const (
	DownloadPending DownloadStatus = "PENDING"
	DownloadSuccess DownloadStatus = "SUCCESS"
	DownloadFailed  DownloadStatus = "FAILED"
)

// DownloadRecord is the durable history of document acquisition for one pk.
type DownloadRecord struct {
	PK            string         `db:"pk"`
	StandardCode  string         `db:"standard_code"`
	FilePath      string         `db:"file_path"`
	FileSize      int64          `db:"file_size"`
	Status        DownloadStatus `db:"download_status"`
	CaptchaText   string         `db:"captcha_text"`
	DownloadToken string         `db:"download_token"`
	RetryCount    int            `db:"retry_count"`
	ErrorMessage  string         `db:"error_message"`
	DownloadTime  *time.Time     `db:"download_time"`
}

// CaptchaVerdict is the validation endpoint response.
// Code 0 means Message carries the download token.
type CaptchaVerdict struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// Accepted reports whether the captcha was validated.
func (v CaptchaVerdict) Accepted() bool {
	return v.Code == 0
}
