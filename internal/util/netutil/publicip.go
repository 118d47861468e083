package netutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
)

// PublicIPEndpoint answers with the caller's IPv4 address as plain text.
const PublicIPEndpoint = "https://ipv4.icanhazip.com"

// GetPublicIP returns the public IPv4 address of the host as seen from endpoint.
// An empty endpoint uses PublicIPEndpoint; a nil client uses http.DefaultClient.
func GetPublicIP(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = PublicIPEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to look up public IP: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to look up public IP: %s answered %s", endpoint, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(body))
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is4() {
		return "", fmt.Errorf("failed to look up public IP: unexpected answer %q", raw)
	}
	return addr.String(), nil
}
