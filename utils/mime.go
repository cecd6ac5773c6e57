package utils

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeGIF is regular gifs.
	MimeTypeGIF = "image/gif"

	// MimeTypeWEBP is webp images, decode only.
	MimeTypeWEBP = "image/webp"

	// MimeTypeBMP is bitmaps, decode only.
	MimeTypeBMP = "image/bmp"

	// MimeTypeJSON is the content type of every detection proxy response.
	MimeTypeJSON = "application/json"

	// MimeTypeDefault is what http.DetectContentType returns when it gives up.
	MimeTypeDefault = "application/octet-stream"
)
