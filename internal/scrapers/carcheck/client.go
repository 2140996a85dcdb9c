package carcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"carcheck/internal/telemetry"
	"carcheck/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// Origin is the lookup service, image sources in its markup are relative to it.
	Origin            = "https://www.instantcarcheck.co.uk"
	LookupPath        = "/product-selection"
	RegistrationField = "vrm"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

const (
	report_client_proxy       = "client.proxy"
	report_client_post_form   = "client.post-form"
	report_client_get_bytes   = "client.get-bytes"
	report_client_lookup      = "client.fetch-lookup-page"
	report_client_fetch_image = "client.fetch-image"
)

var tracer = otel.Tracer("carcheck/scrapers/carcheck")

// FetchError is any failure to get a usable response out of the service:
// transport errors or non-2xx statuses.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err carries a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

type Options struct {
	// BaseUrl defaults to Origin.
	BaseUrl    string
	HttpProxy  string
	HttpsProxy string
	// Timeout of 0 means requests can block indefinitely.
	Timeout time.Duration
	// Output receives a dump of every request, it can be nil.
	Output restyutil.InstrumentOutput
}

type Client struct {
	BaseUrl *url.URL
	http    *resty.Client
	tel     telemetry.API
}

func parseProxy(scheme, raw string) (*url.URL, error) {
	proxy, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s proxy %q: %w", scheme, raw, err)
	}
	if proxy.Scheme == "" || proxy.Host == "" {
		return nil, fmt.Errorf("invalid %s proxy %q: expected <scheme>://<host>[:port]", scheme, raw)
	}
	return proxy, nil
}

// ProxySelector picks the proxy by the scheme of the target url so that an http and
// an https proxy can both be in effect for the same session. Schemes without a
// configured proxy fall back to the environment.
func ProxySelector(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	proxies := map[string]*url.URL{}
	if httpProxy != "" {
		p, err := parseProxy("http", httpProxy)
		if err != nil {
			return nil, err
		}
		proxies["http"] = p
	}
	if httpsProxy != "" {
		p, err := parseProxy("https", httpsProxy)
		if err != nil {
			return nil, err
		}
		proxies["https"] = p
	}

	return func(req *http.Request) (*url.URL, error) {
		if p, ok := proxies[req.URL.Scheme]; ok {
			return p, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}

// NewClient creates a client with its own cookie session. Only configuration
// errors are returned (bad base url or proxy).
func NewClient(opts Options, tel telemetry.API) (Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = Origin
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return Client{}, err
	}
	tel = telemetry.NewScopedAPI("carcheck", tel)

	selector, err := ProxySelector(opts.HttpProxy, opts.HttpsProxy)
	if err != nil {
		return Client{}, err
	}
	if opts.HttpProxy != "" {
		tel.ReportDebug(report_client_proxy, "HTTP", opts.HttpProxy)
	}
	if opts.HttpsProxy != "" {
		tel.ReportDebug(report_client_proxy, "HTTPS", opts.HttpsProxy)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = selector

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return Client{}, err
	}
	client.SetCookieJar(jar)
	client.SetTransport(cloudflarebp.AddCloudFlareByPass(transport))
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	telemetry.InstrumentResty(client, tel, opts.Output)

	return Client{
		BaseUrl: baseUrl,
		http:    client,
		tel:     tel,
	}, nil
}

// Origin is the base that relative links in fetched markup resolve against.
func (c Client) Origin() string {
	return strings.TrimSuffix(c.BaseUrl.String(), "/")
}

func (c Client) check(link string, res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	if res.IsError() {
		return nil, &FetchError{URL: link, Status: res.StatusCode(), Err: errors.New(res.Status())}
	}
	return res.Body(), nil
}

// PostForm posts url-encoded fields to link and returns the response body.
func (c Client) PostForm(ctx context.Context, link string, fields map[string]string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "PostForm")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(link)
	body, err := c.check(link, res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_post_form, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post form")
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.size", len(body)))
	return body, nil
}

// GetBytes reads the whole body of link.
func (c Client) GetBytes(ctx context.Context, link string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "GetBytes")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(link)
	body, err := c.check(link, res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_get_bytes, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get bytes")
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.size", len(body)))
	return body, nil
}

// FetchLookupPage posts the registration to the lookup form and returns the
// resulting markup.
func (c Client) FetchLookupPage(ctx context.Context, registration string) ([]byte, error) {
	link := c.Origin() + LookupPath
	c.tel.ReportDebug(report_client_lookup, registration, link)
	return c.PostForm(ctx, link, map[string]string{
		RegistrationField: registration,
	})
}

// FetchImage downloads an image referenced by a lookup page.
func (c Client) FetchImage(ctx context.Context, link string) ([]byte, error) {
	c.tel.ReportDebug(report_client_fetch_image, link)
	return c.GetBytes(ctx, link)
}
