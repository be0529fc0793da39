package gemini

import (
	"net/http"
	"time"
)

const userAgent = "orbit/1.0"

// userAgentTransport ergänzt jede Anfrage um den User-Agent des Dienstes.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if ua := req.Header.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", userAgent+" "+ua)
	} else {
		req.Header.Set("User-Agent", userAgent)
	}
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient baut den HTTP-Client für die Gemini-Aufrufe. Die Frist pro Aufruf
// kommt über den Context, timeout ist nur die harte Obergrenze.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			Transport: http.DefaultTransport,
		},
	}
}
