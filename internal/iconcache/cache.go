// Package iconcache stores Gotify application images on disk, one file per
// application id. Files are written once and never refreshed.
package iconcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Response bodies above these sizes are rejected.
const (
	maxListSize  = 4 << 20
	maxImageSize = 16 << 20
)

// ErrUnknownApplication is returned when the server lists no application
// with the requested id.
var ErrUnknownApplication = errors.New("unknown application")

// ErrImageTooLarge is returned when an application image exceeds maxImageSize.
var ErrImageTooLarge = errors.New("image too large")

// FetchError wraps a failure to populate the cache for one application.
type FetchError struct {
	AppID   int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := "icon for app " + strconv.Itoa(e.AppID) + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Application is the subset of the server's application object we need.
type Application struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Cache maps application ids to image files under dir.
type Cache struct {
	dir       string
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// New creates a Cache storing files in dir and fetching from the server at
// baseURL (scheme and host, no trailing slash).
func New(dir, baseURL, token string, client *http.Client, logger *slog.Logger) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		dir:       dir,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
		userAgent: "gotify-dunst",
		client:    client,
		logger:    logger,
	}
}

// SetUserAgent overrides the User-Agent sent to the server.
func (c *Cache) SetUserAgent(ua string) {
	c.userAgent = ua
}

// Path returns the deterministic cache path for appID.
func (c *Cache) Path(appID int) string {
	return filepath.Join(c.dir, strconv.Itoa(appID)+".jpg")
}

// GetIcon returns the cached image path for appID, fetching it on first use.
// The path is returned even when the fetch fails, in which case the file
// does not exist and err is a *FetchError.
func (c *Cache) GetIcon(ctx context.Context, appID int) (string, error) {
	path := c.Path(appID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	apps, err := c.ListApplications(ctx)
	if err != nil {
		return path, &FetchError{AppID: appID, Message: "failed to list applications", Err: err}
	}

	var app *Application
	for i := range apps {
		if apps[i].ID == appID {
			app = &apps[i]
			break
		}
	}
	if app == nil {
		return path, &FetchError{AppID: appID, Message: "not in application list", Err: ErrUnknownApplication}
	}

	size, err := c.download(ctx, app.Image, path)
	if err != nil {
		return path, &FetchError{AppID: appID, Message: "failed to download image", Err: err}
	}

	c.logger.Debug("cached application icon", "app_id", appID, "app", app.Name, "size", humanize.Bytes(uint64(size)))
	return path, nil
}

// ListApplications fetches the server's application list.
func (c *Cache) ListApplications(ctx context.Context) ([]Application, error) {
	resp, err := c.get(ctx, "application")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apps []Application
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListSize)).Decode(&apps); err != nil {
		return nil, fmt.Errorf("decode application list: %w", err)
	}
	return apps, nil
}

// download streams the image at the relative path imagePath into dest.
func (c *Cache) download(ctx context.Context, imagePath, dest string) (int64, error) {
	resp, err := c.get(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(c.dir, filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxImageSize {
		err = fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, maxImageSize)
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// get issues an authenticated GET for a path relative to the server root.
func (c *Cache) get(ctx context.Context, relPath string) (*http.Response, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(relPath, "/") + "?token=" + url.QueryEscape(c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// Keep the token out of logged errors
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.baseURL + "/" + strings.TrimPrefix(relPath, "/")
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET /%s: unexpected status %s", strings.TrimPrefix(relPath, "/"), resp.Status)
	}
	return resp, nil
}
