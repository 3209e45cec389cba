// Package bgremove talks to the remote background-removal API.
package bgremove

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://api.slazzer.com/v2.0/remove_image_background"

	fieldImage   = "source_image_file"
	fieldBgColor = "bg_color"
	headerAPIKey = "X-API-KEY"

	maxResponseBytes = 50 << 20
	maxErrorBody     = 512
)

type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logrus.Entry
	maxBody  int64
}

func NewClient(endpoint, apiKey string, timeout time.Duration, log *logrus.Entry) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		log:      log.WithField("component", "bgremove"),
		maxBody:  maxResponseBytes,
	}
}

// RemoveBackground uploads a PNG and returns the image the API sends back.
// It makes exactly one attempt. Every failure is a *entity.GatewayError.
func (c *Client) RemoveBackground(ctx context.Context, png []byte) ([]byte, error) {
	body, contentType, err := buildForm(png)
	if err != nil {
		return nil, &entity.GatewayError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &entity.GatewayError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(headerAPIKey, c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("background removal request failed")
		return nil, &entity.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &entity.GatewayError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	oversized := int64(len(data)) > c.maxBody
	if oversized {
		data = data[:c.maxBody]
	}

	c.log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(data),
		"duration": time.Since(start).String(),
	}).Info("background removal finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &entity.GatewayError{Status: resp.StatusCode, Body: trimBody(data)}
	}
	if oversized {
		return nil, &entity.GatewayError{Status: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", c.maxBody)}
	}
	return data, nil
}

func buildForm(png []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="image.png"`, fieldImage))
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(png); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField(fieldBgColor, "transparent"); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// trimBody shortens an error body to maxErrorBody bytes without splitting a
// UTF-8 sequence.
func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
