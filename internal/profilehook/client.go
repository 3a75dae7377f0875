// Package profilehook consulta un webhook externo que devuelve datos publicos de un perfil.
package profilehook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"disc-assess/internal/domain"
)

var ErrDisabled = errors.New("profile webhook disabled")

// Fetcher obtiene el perfil publico asociado a una URL.
type Fetcher interface {
	Fetch(ctx context.Context, profileURL string) (domain.PublicProfile, error)
}

type Client struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// New devuelve un cliente deshabilitado cuando webhookURL esta vacio.
func New(webhookURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    strings.TrimSpace(webhookURL),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

func (c *Client) Fetch(ctx context.Context, profileURL string) (domain.PublicProfile, error) {
	if !c.Enabled() {
		return domain.PublicProfile{}, ErrDisabled
	}
	profileURL = strings.TrimSpace(profileURL)
	if profileURL == "" {
		return domain.PublicProfile{}, fmt.Errorf("profile url is required")
	}

	body, err := json.Marshal(map[string]string{"url": profileURL})
	if err != nil {
		return domain.PublicProfile{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.PublicProfile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PublicProfile{}, fmt.Errorf("profile webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.PublicProfile{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("profile webhook error status", zap.Int("status", resp.StatusCode))
		return domain.PublicProfile{}, fmt.Errorf("profile webhook status=%d", resp.StatusCode)
	}

	profile, err := decodeProfile(raw)
	if err != nil {
		return domain.PublicProfile{}, err
	}
	profile.URL = profileURL
	return profile, nil
}

// webhookPayload acepta los alias de campo que devuelven los distintos scrapers.
type webhookPayload struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Headline string `json:"headline"`
	Location string `json:"location"`
	PhotoURL string `json:"photoUrl"`
	Avatar   string `json:"avatar"`
	Summary  string `json:"summary"`
	About    string `json:"about"`
}

func decodeProfile(raw []byte) (domain.PublicProfile, error) {
	var env struct {
		Data *webhookPayload `json:"data"`
		webhookPayload
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.PublicProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	p := env.webhookPayload
	if env.Data != nil {
		p = *env.Data
	}
	return domain.PublicProfile{
		FullName: firstNonEmpty(p.FullName, p.Name),
		Headline: strings.TrimSpace(p.Headline),
		Location: strings.TrimSpace(p.Location),
		PhotoURL: firstNonEmpty(p.PhotoURL, p.Avatar),
		Summary:  firstNonEmpty(p.Summary, p.About),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
