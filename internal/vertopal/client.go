// Package vertopal implements the convert.Client interface against the
// Vertopal v1 HTTP API.
package vertopal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/spiffcs/morph/internal/convert"
	"github.com/spiffcs/morph/internal/log"
)

// DefaultEndpoint is the production Vertopal API v1 base URL.
const DefaultEndpoint = "https://api.vertopal.com/v1"

// modeAsync requests a queued conversion that is completed by polling.
const modeAsync = "async"

// Credentials identify the caller to the API.
type Credentials struct {
	Endpoint string // empty means DefaultEndpoint
	AppID    string
	// Token is intentionally never logged or serialized.
	Token string
}

// Client talks to the Vertopal API. All methods are safe for concurrent
// use; Close is idempotent and unblocks in-flight requests.
type Client struct {
	endpoint  string
	appID     string
	http      *http.Client
	baseCtx   context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient creates an API client using a bearer security token.
func NewClient(creds Credentials) (*Client, error) {
	if creds.Token == "" {
		creds.Token = os.Getenv("MORPH_API_TOKEN")
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("API token not provided. Set the MORPH_API_TOKEN environment variable")
	}
	endpoint := strings.TrimSuffix(creds.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: creds.Token},
	)
	// Every request derives from baseCtx so Close can cancel the lot.
	ctx, cancel := context.WithCancel(context.Background())
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		endpoint: endpoint,
		appID:    creds.AppID,
		http:     tc,
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Close cancels all in-flight and future requests and releases idle
// connections. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.http.CloseIdleConnections()
	})
	return nil
}

// Submit uploads the input file and starts an async conversion, returning
// a handle that polls the conversion entity.
func (c *Client) Submit(spec convert.IOSpec) (convert.Job, error) {
	uploadConnector, err := c.upload(spec)
	if err != nil {
		return nil, err
	}
	log.Trace("file uploaded", "file", spec.InputFilename(), "connector", uploadConnector)

	entityID, err := c.startConversion(spec, uploadConnector)
	if err != nil {
		return nil, err
	}
	log.Debug("conversion started", "file", spec.InputFilename(), "entity", entityID)

	return &job{client: c, connector: entityID, outputPath: spec.OutputPath}, nil
}

// upload sends the input file as multipart form data and returns the upload
// task connector.
func (c *Client) upload(spec convert.IOSpec) (string, error) {
	f, err := os.Open(spec.InputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("data", fmt.Sprintf(`{"app":%q}`, c.appID)); err != nil {
		return "", fmt.Errorf("encode upload request: %w", err)
	}
	part, err := mw.CreateFormFile("file", spec.InputFilename())
	if err != nil {
		return "", fmt.Errorf("encode upload request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("encode upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(c.baseCtx, http.MethodPost, c.endpoint+"/upload/file", &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	return resp.Result.Output.Connector, nil
}

// startConversion creates the convert task from a completed upload and
// returns the conversion entity id used for status polling.
func (c *Client) startConversion(spec convert.IOSpec, uploadConnector string) (string, error) {
	parameters := map[string]string{"output": spec.OutputFormat}
	if spec.InputFormat != "" {
		parameters["input"] = spec.InputFormat
	}
	resp, err := c.postTask("/convert/file", map[string]any{
		"app":        c.appID,
		"connector":  uploadConnector,
		"include":    []string{"result", "entity"},
		"mode":       modeAsync,
		"parameters": parameters,
	})
	if err != nil {
		return "", err
	}
	if resp.Entity.Status != "running" {
		return "", &convert.RemoteError{
			Message: fmt.Sprintf("conversion was not accepted (entity status %q)", resp.Entity.Status),
		}
	}
	return resp.Entity.ID, nil
}

// postTask sends a form-encoded API request whose single "data" field holds
// the JSON payload, and decodes the response envelope.
func (c *Client) postTask(path string, payload map[string]any) (*apiResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request payload: %w", err)
	}
	form := url.Values{"data": {string(data)}}

	req, err := http.NewRequestWithContext(c.baseCtx, http.MethodPost,
		c.endpoint+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// do executes the request and maps transport, HTTP and API level failures
// onto the convert error taxonomy.
func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &convert.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &convert.NetworkError{Err: err}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &convert.NetworkError{
			Err: fmt.Errorf("invalid JSON response from %s: %w", req.URL.Path, err),
		}
	}

	if err := parsed.apiError(); err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &convert.RemoteError{
			Message: fmt.Sprintf("server returned HTTP %d for %s", resp.StatusCode, req.URL.Path),
		}
	}
	return &parsed, nil
}

// download streams the content of a download task to the output path. A
// partial output file is removed on any failure.
func (c *Client) download(connector, outputPath string) (err error) {
	data, err := json.Marshal(map[string]any{"app": c.appID, "connector": connector})
	if err != nil {
		return fmt.Errorf("encode request payload: %w", err)
	}
	form := url.Values{"data": {string(data)}}

	req, err := http.NewRequestWithContext(c.baseCtx, http.MethodPost,
		c.endpoint+"/download/url/get", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return &convert.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &convert.RemoteError{
			Message: fmt.Sprintf("download failed with HTTP %d", resp.StatusCode),
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	if _, err = io.Copy(out, resp.Body); err != nil {
		err = &convert.NetworkError{Err: err}
	}
	return err
}
