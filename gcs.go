package bgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// inputHandle is the read surface a View needs over its data file.
type inputHandle interface {
	io.Reader
	io.Seeker
	io.Closer
}

// openInput opens a local path or a gs://bucket/object URL and reports the
// input's size and last-write time (unix seconds) for fingerprinting.
func openInput(path string) (inputHandle, int64, int64, error) {
	if strings.HasPrefix(path, "gs://") {
		return openGoogleStorage(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, pfx.Err(err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, 0, pfx.Err(err)
	}

	return file, stat.Size(), stat.ModTime().Unix(), nil
}

func openGoogleStorage(url string) (inputHandle, int64, int64, error) {
	trimmed := strings.TrimPrefix(url, "gs://")
	slash := strings.Index(trimmed, "/")
	if slash < 1 || slash == len(trimmed)-1 {
		return nil, 0, 0, pfx.Err(fmt.Errorf("%q is not of the form gs://bucket/object", url))
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, 0, 0, pfx.Err(err)
	}

	object := client.Bucket(trimmed[:slash]).Object(trimmed[slash+1:])
	attrs, err := object.Attrs(ctx)
	if err != nil {
		client.Close()
		return nil, 0, 0, pfx.Err(err)
	}

	handle := &gcsReader{
		ctx:    ctx,
		client: client,
		object: object,
		size:   attrs.Size,
	}

	return handle, attrs.Size, attrs.Updated.Unix(), nil
}

// gcsReader adapts a Google Storage object to the seekable read surface the
// View expects. Seeks drop the current range reader; the next Read opens a
// new one at the cursor.
type gcsReader struct {
	ctx    context.Context
	client *storage.Client
	object *storage.ObjectHandle

	size int64
	pos  int64
	rc   io.ReadCloser
}

func (g *gcsReader) Read(p []byte) (int, error) {
	if g.pos >= g.size {
		return 0, io.EOF
	}

	if g.rc == nil {
		rc, err := g.object.NewRangeReader(g.ctx, g.pos, -1)
		if err != nil {
			return 0, pfx.Err(err)
		}
		g.rc = rc
	}

	n, err := g.rc.Read(p)
	g.pos += int64(n)
	return n, err
}

func (g *gcsReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = g.pos + offset
	case io.SeekEnd:
		target = g.size + offset
	default:
		return 0, pfx.Err(fmt.Errorf("unknown whence %d", whence))
	}
	if target < 0 {
		return 0, pfx.Err(fmt.Errorf("seek to negative offset %d", target))
	}

	if target != g.pos && g.rc != nil {
		g.rc.Close()
		g.rc = nil
	}
	g.pos = target

	return target, nil
}

func (g *gcsReader) Close() error {
	if g.rc != nil {
		g.rc.Close()
		g.rc = nil
	}

	return g.client.Close()
}
