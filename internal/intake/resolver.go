// Package intake turns a job's input reference (local path, http(s)
// URL, or s3:// URL) into a readable local PDF, converting office
// documents on the way.
package intake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/converter"
	"github.com/local/pdfsqueeze/internal/filetype"
	"github.com/local/pdfsqueeze/internal/storage"
)

// Guard rate-limits and cools down the external converter.
type Guard interface {
	IsOpen(ctx context.Context, tool string) bool
	Trip(ctx context.Context, tool string)
	Reset(ctx context.Context, tool string)
	Allow(tool string) (func(), bool)
}

const converterTool = "soffice"

// Resolver fetches and normalizes job inputs.
type Resolver struct {
	Detector   *filetype.Detector
	Converter  *converter.LibreOffice
	Guard      Guard
	HTTPClient *http.Client
}

func New(det *filetype.Detector, conv *converter.LibreOffice) *Resolver {
	return &Resolver{
		Detector:   det,
		Converter:  conv,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// WithGuard installs a converter guard; conversions are refused while
// the tool is cooling down after repeated failures.
func (r *Resolver) WithGuard(g Guard) *Resolver {
	r.Guard = g
	return r
}

// Resolve returns a local PDF path for ref plus a cleanup func that
// removes any temporaries it created. The cleanup is never nil.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}

	localPath := ref
	cleanup := noop
	switch {
	case strings.HasPrefix(ref, "s3://"):
		p, err := r.fetchS3(ctx, ref)
		if err != nil {
			return "", noop, err
		}
		localPath = p
		cleanup = func() { os.Remove(p) }
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		p, err := r.fetchHTTP(ctx, ref)
		if err != nil {
			return "", noop, err
		}
		localPath = p
		cleanup = func() { os.Remove(p) }
	case strings.HasPrefix(ref, "file://"):
		localPath = strings.TrimPrefix(ref, "file://")
	}

	if _, err := os.Stat(localPath); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("input not readable: %w", err)
	}

	info, err := r.Detector.Detect(localPath)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	if info.IsPDF {
		return localPath, cleanup, nil
	}
	if !info.Supported || !info.NeedsConversion {
		cleanup()
		return "", noop, fmt.Errorf("unsupported input: %s", info.Description)
	}

	if r.Guard != nil {
		if r.Guard.IsOpen(ctx, converterTool) {
			cleanup()
			return "", noop, fmt.Errorf("converter cooling down after repeated failures")
		}
		release, ok := r.Guard.Allow(converterTool)
		if !ok {
			cleanup()
			return "", noop, fmt.Errorf("converter busy")
		}
		defer release()
	}

	log.Info().Str("ref", ref).Str("type", info.Description).Msg("converting input to PDF")
	converted := tempName("conv", ".pdf")
	res := r.Converter.ConvertToPDF(ctx, localPath, converted)
	if !res.Success {
		if r.Guard != nil && !res.IsProtected {
			r.Guard.Trip(ctx, converterTool)
		}
		cleanup()
		return "", noop, fmt.Errorf("conversion failed: %s", res.Error)
	}
	if r.Guard != nil {
		r.Guard.Reset(ctx, converterTool)
	}
	prev := cleanup
	return res.OutputPath, func() {
		os.Remove(res.OutputPath)
		prev()
	}, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	path := tempName("pdfdl", filepath.Ext(strings.SplitN(url, "?", 2)[0]))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (r *Resolver) fetchS3(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := storage.ParseS3URL(ref)
	if !ok {
		return "", fmt.Errorf("malformed s3 url: %s", ref)
	}
	cli, err := storage.NewS3Client(ctx, bucket)
	if err != nil {
		return "", err
	}
	path := tempName("s3pdf", filepath.Ext(key))
	if err := cli.DownloadToFile(ctx, key, path); err != nil {
		return "", err
	}
	return path, nil
}

func tempName(prefix, ext string) string {
	if ext == "" || len(ext) > 8 {
		ext = ".pdf"
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d%s", prefix, time.Now().UnixNano(), ext))
}
