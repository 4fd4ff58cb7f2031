package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GeoLiteUpdateInterval is how often MaxMind publishes GeoLite2 City.
const GeoLiteUpdateInterval = 7 * 24 * time.Hour

// GeoReloader swaps in the database file currently on disk.
type GeoReloader interface {
	Reload()
}

// GeoLiteUpdaterJob keeps the GeoLite2 database fresh. With a license key it
// downloads a new copy once the file is a week old. Either way it reloads
// the reader whenever the file's modification time changes, so an external
// geoipupdate also takes effect without a restart.
type GeoLiteUpdaterJob struct {
	path        string
	licenseKey  string
	downloadURL string
	reader      GeoReloader
	client      *http.Client
	logger      *slog.Logger
	lastModTime time.Time
}

func NewGeoLiteUpdaterJob(path, licenseKey, downloadURL string, reader GeoReloader, logger *slog.Logger) *GeoLiteUpdaterJob {
	j := &GeoLiteUpdaterJob{
		path:        path,
		licenseKey:  licenseKey,
		downloadURL: downloadURL,
		reader:      reader,
		client:      &http.Client{Timeout: 5 * time.Minute},
		logger:      logger,
	}
	if info, err := os.Stat(path); err == nil {
		j.lastModTime = info.ModTime()
	}
	return j
}

func (j *GeoLiteUpdaterJob) Name() string { return "geolite_updater" }

func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	info, statErr := os.Stat(j.path)

	if j.licenseKey != "" && (statErr != nil || time.Since(info.ModTime()) >= GeoLiteUpdateInterval) {
		j.logger.Info("Starting GeoLite database update", slog.String("path", j.path))
		if err := j.downloadAndUpdate(ctx); err != nil {
			j.logger.Error("Failed to update GeoLite database", slog.Any("error", err))
			return err
		}
		info, statErr = os.Stat(j.path)
	}

	if statErr != nil {
		j.logger.Debug("GeoLite database not present", slog.String("path", j.path))
		return nil
	}
	if !info.ModTime().Equal(j.lastModTime) {
		j.lastModTime = info.ModTime()
		j.reader.Reload()
		j.logger.Info("GeoLite database reloaded", slog.Time("mod_time", j.lastModTime))
	}
	return nil
}

// downloadAndUpdate fetches the archive and replaces the database file
// atomically, so readers never see a partial file.
func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	url := j.downloadURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, j.licenseKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extractMMDB(resp.Body, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to extract database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), j.path)
}

// extractMMDB copies the first .mmdb entry of a tar.gz stream to dst.
func extractMMDB(src io.Reader, dst io.Writer) error {
	gzr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("no .mmdb file found in archive")
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if strings.HasSuffix(header.Name, ".mmdb") {
			if _, err := io.Copy(dst, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}
			return nil
		}
	}
}
