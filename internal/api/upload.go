package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// DefaultChunkSize is the size of each upload request body.
const DefaultChunkSize int64 = 10 * 1024 * 1024

// finalizingPercent is the progress at which the server-side finalization
// usually dominates, so the status switches from a percentage to a phrase.
const finalizingPercent = 95

// Progress describes upload progress after some bytes have been sent.
type Progress struct {
	Sent       int64
	Total      int64
	Percent    int
	Finalizing bool
}

// ProgressFunc receives upload progress updates.
type ProgressFunc func(Progress)

// Uploader streams an archive to the registry in sequential chunks.
type Uploader struct {
	client    *Client
	chunkSize int64
	progress  ProgressFunc
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int64) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) UploaderOption {
	return func(u *Uploader) { u.progress = fn }
}

// NewUploader creates an Uploader that sends through c.
func NewUploader(c *Client, opts ...UploaderOption) *Uploader {
	u := &Uploader{client: c, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the archive at path for the given agent. Chunks go out
// strictly in order, each declaring "Content-Range: bytes start-end/total".
// The loop stops as soon as a response reports completion. Any failed
// chunk aborts the upload; a new call starts again from byte 0.
func (u *Uploader) Upload(ctx context.Context, path, agentID string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	total := info.Size()
	if total == 0 {
		return nil, fmt.Errorf("archive %s is empty", path)
	}

	target := u.client.registryURL("/upload/%s", url.PathEscape(agentID))
	filename := filepath.Base(path)
	hasher := blake3.New()
	buf := make([]byte, u.chunkSize)

	var (
		result *UploadResult
		chunks int
		offset int64
	)
	for offset < total {
		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading archive at offset %d: %w", offset, err)
		}
		if n == 0 {
			break
		}
		chunk := buf[:n]
		start, end := offset, offset+int64(n)-1
		_, _ = hasher.Write(chunk)

		res, err := u.sendChunk(ctx, target, filename, chunk, start, end, total)
		if err != nil {
			return nil, fmt.Errorf("uploading bytes %d-%d/%d: %w", start, end, total, err)
		}
		chunks++
		offset = end + 1
		result = res
		u.report(end+1, total)

		u.client.logger.Debug("chunk uploaded", "agent", agentID, "start", start, "end", end, "total", total, "complete", res.Complete)
		if res.Complete {
			break
		}
	}

	if result == nil {
		return nil, fmt.Errorf("no chunks uploaded from %s", path)
	}
	result.Chunks = chunks
	result.BytesSent = offset
	result.Digest = hex.EncodeToString(hasher.Sum(nil))
	return result, nil
}

func (u *Uploader) sendChunk(ctx context.Context, target, filename string, chunk []byte, start, end, total int64) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(chunk); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	// Report progress as the request body is consumed by the transport.
	bodyLen := int64(body.Len())
	chunkLen := end - start + 1
	pr := &progressReader{r: &body, onRead: func(read int64) {
		sent := start + read*chunkLen/bodyLen
		if sent > end {
			sent = end
		}
		u.report(sent, total)
	}}

	req, err := u.client.newRequest(ctx, http.MethodPost, target, pr)
	if err != nil {
		return nil, err
	}
	req.ContentLength = bodyLen
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Content-Range", ContentRange(start, end, total))
	req.Header.Set("Accept", "application/json")

	var res UploadResult
	if err := u.client.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (u *Uploader) report(sent, total int64) {
	if u.progress == nil {
		return
	}
	pct := int(sent * 100 / total)
	u.progress(Progress{
		Sent:       sent,
		Total:      total,
		Percent:    pct,
		Finalizing: pct >= finalizingPercent,
	})
}

// ContentRange formats an inclusive byte range header value.
func ContentRange(start, end, total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", start, end, total)
}

// progressReader reports the cumulative number of bytes read.
type progressReader struct {
	r      io.Reader
	read   int64
	onRead func(read int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.onRead(p.read)
	}
	return n, err
}
