package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ResultPublisher uploads finished artifacts under a common prefix so
// callers that submitted s3:// inputs can fetch results the same way.
type ResultPublisher struct {
	client *S3Client
	prefix string
}

func NewResultPublisher(client *S3Client, prefix string) *ResultPublisher {
	return &ResultPublisher{client: client, prefix: strings.Trim(prefix, "/")}
}

// Publish uploads localPath and returns its s3:// URL.
func (p *ResultPublisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	key := fmt.Sprintf("%s/%s/%s", p.prefix, jobID, filepath.Base(localPath))
	return p.client.UploadFromFile(ctx, key, localPath, contentTypeFor(localPath))
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
