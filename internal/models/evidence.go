package models

import "io"

// DefaultEvidenceContentType используется, если клиент не передал тип содержимого
const DefaultEvidenceContentType = "video/mp4"

// Evidence - ссылка на выбранное пользователем видео. Содержимое читается потоком.
type Evidence struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
