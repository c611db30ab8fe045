package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nimda/waxmpp/internal/core"
)

// requestUploadSlot asks the server for an upload URL for the given
// mime type, blocking for the response. The request is registered on the
// session's media queue for the duration of the round trip and taken off it
// when this function returns, on success or error. A disconnect fails the
// tracked request, so the entry is normally gone before the next login and
// wireMediaResume's handler does not re-send it.
func (a *ApiSurface) requestUploadSlot(ctx context.Context, to, path, mimeType, caption string) (uploadURL string, err error) {
	n := core.NewNode("iq").
		SetAttr("id", a.session.NextMessageId("media")).
		SetAttr("type", "set").
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("media").SetAttr("mimetype", mimeType))

	id := n.AttrOr("id", "")
	a.session.MediaQueue().Add(id, core.PendingMedia{Filepath: path, To: to, Caption: caption, MimeType: mimeType})
	defer a.session.MediaQueue().Take(id)

	result, err := a.requestIQWithContext(ctx, n)
	if err != nil {
		return "", err
	}
	if result.AttrOr("type", "") == "error" {
		return "", wrapRequestError(result)
	}
	media := result.Child("media")
	if media == nil {
		return "", fmt.Errorf("api: upload-slot result missing media node")
	}
	url, ok := media.Attr("url")
	if !ok {
		return "", fmt.Errorf("api: upload-slot result missing url")
	}
	return url, nil
}

// wireMediaResume registers a handler that re-sends every media upload
// still on the session's media queue when login succeeds.
func (a *ApiSurface) wireMediaResume() {
	a.session.SetMediaResumeHandler(func(ctx context.Context, pending core.PendingMedia) error {
		_, err := a.sendMedia(ctx, mediaKindForMimeType(pending.MimeType), pending.To, pending.Filepath, pending.MimeType, pending.Caption)
		return err
	})
}

func (a *ApiSurface) requestIQWithContext(ctx context.Context, n *core.Node) (*core.Node, error) {
	type res struct {
		node *core.Node
		err  error
	}
	ch := make(chan res, 1)
	go func() {
		node, err := a.requestIQ(n, defaultRequestTimeout)
		ch <- res{node, err}
	}()
	select {
	case r := <-ch:
		return r.node, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendMedia uploads the file at path and sends a media message of the
// given kind ("image", "video", "audio") referencing it.
func (a *ApiSurface) sendMedia(ctx context.Context, kind, to, path, mimeType, caption string) (string, error) {
	if a.media == nil {
		return "", fmt.Errorf("api: no media store wired")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("api: stat media file: %w", err)
	}

	uploadURL, err := a.requestUploadSlot(ctx, to, path, mimeType, caption)
	if err != nil {
		return "", fmt.Errorf("api: requesting upload slot: %w", err)
	}
	downloadURL, fileHash, err := a.media.Upload(ctx, uploadURL, path, mimeType)
	if err != nil {
		return "", fmt.Errorf("api: uploading media: %w", err)
	}

	mediaNode := core.NewNode(kind).
		SetAttr("url", downloadURL).
		SetAttr("mimetype", mimeType).
		SetAttr("filehash", fileHash).
		SetAttr("size", fmt.Sprintf("%d", info.Size()))
	if caption != "" {
		mediaNode.SetAttr("caption", caption)
	}
	if thumb, ok := a.buildThumbnail(ctx, kind, path); ok {
		mediaNode.SetPayload(thumb)
	}

	id := a.session.NextMessageId("msg")
	n := core.NewNode("message").
		SetAttr("id", id).
		SetAttr("type", "media").
		SetAttr("to", to).
		AddChild(mediaNode)
	if err := a.session.SendNode(n); err != nil {
		return "", err
	}
	return id, nil
}

func (a *ApiSurface) buildThumbnail(ctx context.Context, kind, path string) ([]byte, bool) {
	if a.thumb == nil {
		return nil, false
	}
	var (
		thumb []byte
		err   error
	)
	switch kind {
	case "image":
		thumb, err = a.thumb.ImageThumbnail(ctx, path)
	case "video":
		thumb, err = a.thumb.VideoThumbnail(ctx, path)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return thumb, true
}

// SendImage uploads path and sends it as an image message, with an
// optional caption.
func (a *ApiSurface) SendImage(ctx context.Context, to, path, caption string) (string, error) {
	return a.sendMedia(ctx, "image", to, path, "image/jpeg", caption)
}

// SendVideo uploads path and sends it as a video message.
func (a *ApiSurface) SendVideo(ctx context.Context, to, path, caption string) (string, error) {
	return a.sendMedia(ctx, "video", to, path, "video/mp4", caption)
}

// SendAudio uploads path and sends it as an audio message. Audio
// messages never carry captions or thumbnails.
func (a *ApiSurface) SendAudio(ctx context.Context, to, path string) (string, error) {
	return a.sendMedia(ctx, "audio", to, path, "audio/ogg", "")
}

// SendMediaJob adapts one core.MediaUploadJob onto sendMedia, making
// ApiSurface satisfy core's mediaSender interface for BatchSendMedia.
func (a *ApiSurface) SendMediaJob(ctx context.Context, job core.MediaUploadJob) (string, error) {
	return a.sendMedia(ctx, mediaKindForMimeType(job.MimeType), job.To, job.Path, job.MimeType, job.Caption)
}

func mediaKindForMimeType(mimeType string) string {
	switch {
	case len(mimeType) >= 5 && mimeType[:5] == "image":
		return "image"
	case len(mimeType) >= 5 && mimeType[:5] == "video":
		return "video"
	default:
		return "audio"
	}
}

// BatchSendMedia uploads and sends every job concurrently across a bounded
// worker pool, rate-limited to avoid saturating the upload backend. It
// blocks until the pool's workers stop (every job done, ctx cancelled, or
// the consecutive-error breaker tripped) and returns one result per job
// whose outcome was delivered, in completion order; jobs left unattempted
// when the pool stops early have no result.
func (a *ApiSurface) BatchSendMedia(ctx context.Context, jobs []core.MediaUploadJob, workers int, rateLimit time.Duration) ([]core.MediaUploadResult, error) {
	pool := core.NewMediaUploadPool(workers, rateLimit, a, a.metrics)
	if err := pool.Run(ctx, jobs); err != nil {
		return nil, err
	}
	results := make([]core.MediaUploadResult, 0, len(jobs))
	for r := range pool.Results() {
		results = append(results, r)
	}
	return results, nil
}
