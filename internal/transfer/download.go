package transfer

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/diskspace"
	"github.com/ncopds/ncopds/internal/http"
	"github.com/ncopds/ncopds/internal/util/buffers"
	"github.com/ncopds/ncopds/internal/util/paths"
	"github.com/ncopds/ncopds/internal/util/sanitize"
)

// sniffLen is how much of the file is kept for content detection.
const sniffLen = 3072

// htmlExtensions are names under which an HTML body is what was asked for.
var htmlExtensions = map[string]bool{".html": true, ".htm": true, ".xhtml": true}

func (p *Pool) download(u *unit) Message {
	req := u.req
	auth, cerr := p.credentials(u.ctx, req)
	if cerr != nil {
		return Failure{Seq: req.Seq, Kind: req.Kind, Err: cerr}
	}

	stream, err := p.fetcher.Stream(u.ctx, req.URL, auth)
	if err != nil {
		p.rejectIfRefused(req, auth, err)
		return p.fail(req, "download", err)
	}
	defer stream.Body.Close()

	mediaType := stream.ContentType
	if mediaType == "" || strings.HasPrefix(mediaType, "application/octet-stream") {
		mediaType = req.MediaType
	}
	name := ChooseFilename(stream.Filename, stream.URL, mediaType, time.Now())

	if err := os.MkdirAll(req.DestDir, 0755); err != nil {
		return p.fail(req, "download", err)
	}
	dest, err := paths.UniquePath(filepath.Join(req.DestDir, name), constants.PartialSuffix)
	if err != nil {
		return p.fail(req, "download", err)
	}
	if err := diskspace.CheckAvailableSpace(dest, stream.Size, constants.DiskSpaceBufferPercent); err != nil {
		return p.fail(req, "download", err)
	}

	written, head, err := p.writePartial(u, dest, stream)
	part := dest + constants.PartialSuffix
	if err != nil {
		os.Remove(part)
		if u.ctx.Err() != nil {
			return Failure{Seq: req.Seq, Kind: req.Kind, Err: &Error{Kind: KindCancelled, Op: "download", Err: ErrCancelled}}
		}
		return p.fail(req, "download", err)
	}

	detected := mimetype.Detect(head)
	ext := strings.ToLower(filepath.Ext(dest))
	if detected.Is("text/html") && !htmlExtensions[ext] {
		os.Remove(part)
		return Failure{Seq: req.Seq, Kind: req.Kind, Err: &Error{Kind: KindTransport, Op: "download", Err: ErrHTMLPage}}
	}
	target := dest
	if ext == "" && detected.Extension() != "" {
		target = dest + detected.Extension()
	}
	// Another process may have created dest while we were writing.
	final, err := paths.Claim(target)
	if err != nil {
		os.Remove(part)
		return p.fail(req, "download", err)
	}
	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		os.Remove(final)
		return p.fail(req, "download", err)
	}
	dest = final
	p.logger.Info().Uint64("seq", req.Seq).Str("path", dest).Int64("bytes", written).Msg("download complete")
	return Success{Seq: req.Seq, Kind: Download, Path: dest, Size: written}
}

// writePartial streams into dest+".part", emitting throttled Progress. It
// returns the byte count and the first sniffLen bytes.
func (p *Pool) writePartial(u *unit, dest string, stream *http.Stream) (int64, []byte, error) {
	f, err := os.OpenFile(dest+constants.PartialSuffix, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, nil, err
	}

	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)

	head := make([]byte, 0, sniffLen)
	var written int64
	var lastEmit time.Time
	total := stream.Size
	if total <= 0 {
		total = -1
	}

	progress := func(force bool) {
		now := time.Now()
		if !force && now.Sub(lastEmit) < constants.ProgressInterval {
			return
		}
		lastEmit = now
		p.send(u, Progress{Seq: u.req.Seq, Received: written, Total: total})
	}

	copyErr := func() error {
		for {
			if err := u.ctx.Err(); err != nil {
				return err
			}
			n, rerr := stream.Body.Read(*buf)
			if n > 0 {
				if _, werr := f.Write((*buf)[:n]); werr != nil {
					return werr
				}
				if room := sniffLen - len(head); room > 0 {
					head = append(head, (*buf)[:min(n, room)]...)
				}
				written += int64(n)
				progress(false)
			}
			if rerr == io.EOF {
				return nil
			}
			if rerr != nil {
				return rerr
			}
		}
	}()

	if copyErr == nil && stream.Size > 0 && written < stream.Size {
		copyErr = fmt.Errorf("connection closed after %d of %d bytes: %w", written, stream.Size, io.ErrUnexpectedEOF)
	}
	if copyErr == nil {
		copyErr = f.Sync()
	}
	if cerr := f.Close(); copyErr == nil {
		copyErr = cerr
	}
	if copyErr != nil {
		return written, nil, copyErr
	}

	if total < 0 {
		total = written
	}
	progress(true)
	return written, head, nil
}

// ChooseFilename picks the local name for a download: the server's
// Content-Disposition name, else the last URL segment, else a timestamped
// placeholder. A missing extension is inferred from mediaType.
func ChooseFilename(disposition, rawURL, mediaType string, now time.Time) string {
	name := sanitize.Filename(path.Base(strings.ReplaceAll(disposition, `\`, "/")))
	if name == "" {
		name = sanitize.Filename(http.URLFilename(rawURL))
	}
	if name == "" {
		name = fmt.Sprintf("download-%d", now.Unix())
	}
	if filepath.Ext(name) == "" {
		name += extensionFor(mediaType)
	}
	return name
}

func extensionFor(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	switch mediaType {
	case "application/x-mobipocket-ebook":
		return ".mobi"
	case "application/x-fictionbook+xml":
		return ".fb2"
	case "application/x-cbz", "application/vnd.comicbook+zip":
		return ".cbz"
	case "application/octet-stream", "text/html", "application/xhtml+xml":
		return ""
	}
	if m := mimetype.Lookup(mediaType); m != nil {
		return m.Extension()
	}
	return ""
}
