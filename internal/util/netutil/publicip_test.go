package netutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPublicIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr string
	}{
		{name: "trims newline", status: http.StatusOK, body: "203.0.113.7\n", want: "203.0.113.7"},
		{name: "rejects non-ip", status: http.StatusOK, body: "<html>", wantErr: "unexpected answer"},
		{name: "rejects ipv6", status: http.StatusOK, body: "2001:db8::1", wantErr: "unexpected answer"},
		{name: "non-200", status: http.StatusBadGateway, body: "", wantErr: "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := GetPublicIP(context.Background(), srv.Client(), srv.URL)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
