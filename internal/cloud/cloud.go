// Package cloud publishes finished playlist folders to object storage.
// Targets are S3 buckets (s3://bucket/prefix) or Azure Blob containers
// (azblob://<SAS URL> or azblob://container with a connection string).
package cloud

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spdl/spdl/internal/config"
)

// Uploader stores one local file under key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Scheme identifies the storage backend of a Target.
type Scheme string

const (
	SchemeS3    Scheme = "s3"
	SchemeAzure Scheme = "azblob"
)

// Target is a parsed upload destination.
type Target struct {
	Scheme Scheme

	// Bucket is the S3 bucket or Azure container.
	Bucket string
	// Prefix is prepended to every object key, without leading or trailing slash.
	Prefix string

	// ServiceURL is the Azure account URL carrying the SAS query, empty for
	// connection string auth.
	ServiceURL string
}

// Key joins the target prefix with a slash-separated relative path.
func (t Target) Key(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if t.Prefix == "" {
		return rel
	}
	return t.Prefix + "/" + rel
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s/%s", t.Scheme, t.Bucket, t.Prefix)
}

// ParseTarget parses an upload_target value.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "s3://"):
		bucket, prefix := splitBucket(strings.TrimPrefix(raw, "s3://"))
		if bucket == "" {
			return Target{}, fmt.Errorf("s3 target %q has no bucket", raw)
		}
		return Target{Scheme: SchemeS3, Bucket: bucket, Prefix: prefix}, nil

	case strings.HasPrefix(raw, "azblob://"):
		rest := strings.TrimPrefix(raw, "azblob://")
		if strings.HasPrefix(rest, "https://") || strings.HasPrefix(rest, "http://") {
			return parseSASTarget(rest)
		}
		container, prefix := splitBucket(rest)
		if container == "" {
			return Target{}, fmt.Errorf("azure target %q has no container", raw)
		}
		return Target{Scheme: SchemeAzure, Bucket: container, Prefix: prefix}, nil

	default:
		return Target{}, fmt.Errorf("unsupported upload target %q: want s3:// or azblob://", raw)
	}
}

func splitBucket(s string) (bucket, prefix string) {
	s = strings.Trim(s, "/")
	bucket, prefix, _ = strings.Cut(s, "/")
	return bucket, strings.Trim(prefix, "/")
}

// parseSASTarget splits https://acct.blob.core.windows.net/container/prefix?sig
// into the service URL (with the SAS query) and container/prefix.
func parseSASTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid azure SAS URL: %w", err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("azure SAS URL %q has no host", raw)
	}
	container, prefix := splitBucket(u.Path)
	if container == "" {
		return Target{}, fmt.Errorf("azure SAS URL %q has no container", raw)
	}
	if u.RawQuery == "" {
		return Target{}, fmt.Errorf("azure SAS URL %q has no SAS token", raw)
	}

	service := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/", RawQuery: u.RawQuery}
	return Target{
		Scheme:     SchemeAzure,
		Bucket:     container,
		Prefix:     prefix,
		ServiceURL: service.String(),
	}, nil
}

// NewUploader builds the uploader for target. httpClient carries the proxy
// configuration and is shared by the SDK clients.
func NewUploader(ctx context.Context, cfg *config.Config, target Target, httpClient *nethttp.Client) (Uploader, error) {
	switch target.Scheme {
	case SchemeS3:
		return NewS3Uploader(ctx, S3Options{
			Bucket:          target.Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("SPDL_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SPDL_S3_SECRET_ACCESS_KEY"),
			HTTPClient:      httpClient,
		})
	case SchemeAzure:
		return NewAzureUploader(AzureOptions{
			ServiceURL:       target.ServiceURL,
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			Container:        target.Bucket,
			HTTPClient:       httpClient,
		})
	default:
		return nil, fmt.Errorf("unsupported target scheme %q", target.Scheme)
	}
}
