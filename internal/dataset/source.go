package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"google.golang.org/api/option"

	"github.com/yungbote/simgraph/internal/platform/gcp"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

// Opener resolves a dataset location to a byte stream. Supported forms are a
// local path, an http(s) URL and gs://bucket/object.
type Opener struct {
	FS         afero.Fs
	HTTPClient *http.Client
	// GCSOptions are passed to storage.NewClient for gs:// sources.
	GCSOptions []option.ClientOption
	log        *logger.Logger
}

func NewOpener(log *logger.Logger) *Opener {
	if log == nil {
		log = logger.Nop()
	}
	return &Opener{
		FS:         afero.NewOsFs(),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		GCSOptions: gcp.ClientOptionsFromEnv(),
		log:        log.With("component", "DatasetOpener"),
	}
}

func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &InputError{Reason: "dataset location is empty"}
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare paths, and windows drive letters parsed as a scheme
		return o.openLocal(location)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return o.openLocal(u.Path)
	case "http", "https":
		return o.openHTTP(ctx, location)
	case "gs":
		return o.openGCS(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, &InputError{Reason: fmt.Sprintf("unsupported dataset scheme %q", u.Scheme)}
	}
}

func (o *Opener) openLocal(path string) (io.ReadCloser, error) {
	fs := o.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, &InputError{Reason: "open dataset file", Err: err}
	}
	o.log.Debug("dataset opened", "source", path, "kind", "file")
	return f, nil
}

func (o *Opener) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &InputError{Reason: "build dataset request", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &InputError{Reason: "fetch dataset", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, &InputError{Reason: fmt.Sprintf("fetch dataset: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	o.log.Debug("dataset opened", "source", location, "kind", "http")
	return resp.Body, nil
}

func (o *Opener) openGCS(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	if bucket == "" || object == "" {
		return nil, &InputError{Reason: "gs:// dataset needs bucket and object"}
	}
	client, err := storage.NewClient(ctx, o.GCSOptions...)
	if err != nil {
		return nil, fmt.Errorf("dataset gcs client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, &InputError{Reason: fmt.Sprintf("open gs://%s/%s", bucket, object), Err: err}
	}
	o.log.Debug("dataset opened", "source", "gs://"+bucket+"/"+object, "kind", "gcs", "size", r.Attrs.Size)
	return &gcsReader{Reader: r, client: client}, nil
}

// gcsReader closes the per-read storage client together with the object.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
