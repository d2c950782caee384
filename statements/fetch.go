package statements

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/lib/oidfedconst"
)

// DefaultFetchTimeout bounds a single discovery request
const DefaultFetchTimeout = 10 * time.Second

const wellKnownPath = "/.well-known/openid-federation"

// RemoteStatement holds the claims of a fetched self-asserted entity
// statement. The signature is not verified; the data is untrusted until
// the validation rules accepted it.
type RemoteStatement struct {
	Issuer         string
	Subject        string
	Metadata       map[string]any
	JWKS           map[string]any
	AuthorityHints []string
	TrustMarks     json.RawMessage
	Raw            string
}

type remoteClaims struct {
	Issuer         string          `json:"iss"`
	Subject        string          `json:"sub"`
	Metadata       map[string]any  `json:"metadata"`
	JWKS           map[string]any  `json:"jwks"`
	AuthorityHints []string        `json:"authority_hints"`
	TrustMarks     json.RawMessage `json:"trust_marks"`
}

// Fetcher retrieves the self-asserted statements of candidate entities
type Fetcher struct {
	client *resty.Client
}

// FetcherOption configures a Fetcher
type FetcherOption func(*resty.Client)

// WithTransport sets the http transport used for fetching
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

// NewFetcher creates a Fetcher; a zero timeout means DefaultFetchTimeout
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", oidfedconst.ContentTypeEntityStatement)
	for _, opt := range opts {
		opt(client)
	}
	return &Fetcher{client: client}
}

// WellKnownURL returns the discovery url of an entity
func WellKnownURL(entityID string) string {
	return strings.TrimSuffix(entityID, "/") + wellKnownPath
}

// Fetch retrieves and decodes the self-asserted statement of entityID.
// There are no retries; every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, entityID string) (*RemoteStatement, error) {
	fail := func(err error) (*RemoteStatement, error) {
		return nil, &FetchError{
			EntityID: entityID,
			Err:      err,
		}
	}
	u := WellKnownURL(entityID)
	log.WithField("url", u).Debug("fetching entity statement")
	resp, err := f.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return fail(errors.WithStack(err))
	}
	if !resp.IsSuccess() {
		return fail(errors.Errorf("unexpected http status %d", resp.StatusCode()))
	}
	raw := strings.TrimSpace(string(resp.Body()))
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return fail(errors.Wrap(err, "response is not a jws"))
	}
	var claims remoteClaims
	if err = json.Unmarshal(msg.Payload(), &claims); err != nil {
		return fail(errors.Wrap(err, "invalid entity statement payload"))
	}
	if strings.TrimSuffix(claims.Subject, "/") != strings.TrimSuffix(entityID, "/") {
		return fail(errors.Errorf("statement subject '%s' does not match", claims.Subject))
	}
	if string(claims.TrustMarks) == "null" {
		claims.TrustMarks = nil
	}
	return &RemoteStatement{
		Issuer:         claims.Issuer,
		Subject:        claims.Subject,
		Metadata:       claims.Metadata,
		JWKS:           claims.JWKS,
		AuthorityHints: claims.AuthorityHints,
		TrustMarks:     claims.TrustMarks,
		Raw:            raw,
	}, nil
}
