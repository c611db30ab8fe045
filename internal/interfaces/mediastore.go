package interfaces

import "context"

// MediaStore is the external contract for uploading and downloading the
// binary content of image/video/audio messages. The client never talks to
// the CDN directly; it asks MediaStore to do so and only handles the
// resulting URL/metadata (§6).
type MediaStore interface {
	// Upload pushes the file at path to the given upload URL (obtained via
	// an upload-slot iq) and returns the final download URL plus a SHA-256
	// file hash the server will echo back to recipients.
	Upload(ctx context.Context, uploadURL, path, mimeType string) (downloadURL string, fileHash string, err error)
	// Download retrieves the content at url into destPath.
	Download(ctx context.Context, url, destPath string) error
}

// Thumbnailer produces the small preview image embedded in outbound
// image/video messages.
type Thumbnailer interface {
	ImageThumbnail(ctx context.Context, path string) ([]byte, error)
	VideoThumbnail(ctx context.Context, path string) ([]byte, error)
}
