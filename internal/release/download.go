package release

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/sha256-simd"
	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
	"github.com/CloudNativeWorks/mod-updater/internal/progress"
)

// Download is a payload fetched into a scratch file.
type Download struct {
	Path   string
	Size   int64
	SHA256 string
}

// Remove deletes the scratch file. Safe to call after it has been moved.
func (d *Download) Remove() {
	if d != nil && d.Path != "" {
		os.Remove(d.Path)
	}
}

type Downloader struct {
	httpClient *http.Client
	userAgent  string
	retries    uint64
	logger     *logrus.Entry
}

func NewDownloader(userAgent string) *Downloader {
	return &Downloader{
		httpClient: newHTTPClient(DefaultTimeout),
		userAgent:  userAgent,
		retries:    defaultRetries,
		logger:     logrus.WithField("component", "downloader"),
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (d *Downloader) WithHTTPClient(hc *http.Client) *Downloader {
	d.httpClient = hc
	return d
}

// Fetch downloads url into a new file in dir (the system temp dir when
// empty). Nothing is left behind on failure. Progress is reported against
// span when the server announces a length.
func (d *Downloader) Fetch(ctx context.Context, url, dir string, span progress.Span) (*Download, error) {
	d.logger.WithField("url", url).Info("Starting download")

	var result *Download
	op := func() error {
		dl, err := d.fetchOnce(ctx, url, dir, span)
		if err != nil {
			return err
		}
		result = dl
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, d.retries), ctx)); err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"bytes":  result.Size,
		"sha256": result.SHA256,
	}).Info("Download completed")
	return result, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dir string, span progress.Span) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create download request: %w", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		d.logger.WithError(err).Warn("Failed to download file")
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{URL: url, Code: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	tempFile, err := os.CreateTemp(dir, ".mod-updater-download-*")
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create temp file: %w", err))
	}
	keep := false
	defer func() {
		tempFile.Close()
		if !keep {
			os.Remove(tempFile.Name())
		}
	}()

	hasher := sha256.New()
	total := resp.ContentLength
	span.Fraction(0)
	written, err := common.CopyWithContext(ctx, io.MultiWriter(tempFile, hasher), resp.Body, func(n int64) {
		if total > 0 {
			span.Fraction(float64(n) / float64(total))
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if total > 0 && written != total {
		return nil, fmt.Errorf("short download: got %d of %d bytes", written, total)
	}

	if err := tempFile.Sync(); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to sync file: %w", err))
	}
	span.Fraction(1)

	keep = true
	return &Download{
		Path:   tempFile.Name(),
		Size:   written,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
