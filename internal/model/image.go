package model

// StoredImage is a downloaded source image written verbatim to the images directory.
type StoredImage struct {
	Name        string `json:"name"`         // derived file name, e.g. "bar-123.jpg"
	Path        string `json:"file_path"`    // path inside the store
	URL         string `json:"url"`          // empty when discovered by a directory scan
	Size        int64  `json:"size"`         // bytes written
	ContentType string `json:"content_type"` // sniffed MIME type of the body
}

// ProcessedImage is a blurred thumbnail derived from exactly one StoredImage.
type ProcessedImage struct {
	Name   string `json:"name"`      // "thumb_" + source name
	Path   string `json:"file_path"` // path inside the store
	Source string `json:"source"`    // name of the StoredImage it was derived from
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
