package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config describes one OpenAI-compatible chat endpoint.
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"` // seconds
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("API key is required")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("API URL is required")
	}
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API URL %q is not an absolute URL", c.APIURL)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// endpoint joins the base URL and path without doubling slashes.
func (c *Config) endpoint(path string) string {
	return strings.TrimRight(c.APIURL, "/") + path
}

func (c *Config) headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}
