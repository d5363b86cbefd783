package keys

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrConnection  = errors.New("error connecting to key server")
	ErrKeyNotFound = errors.New("key not found")
)

// Retriever exchanges a join token for the named key.
type Retriever interface {
	RequestKey(ctx context.Context, param, token string) (string, error)
	// IsBusy reports whether a request is in flight.
	IsBusy() bool
}

// HTTPRetriever asks a key server: GET <url>?<param>=<token>, the response
// body being the key. Failed requests are not retried.
type HTTPRetriever struct {
	url    string
	client *http.Client
	logger *zap.Logger
	active atomic.Int32
}

var _ Retriever = &HTTPRetriever{}

func NewHTTPRetriever(apiURL string, client *http.Client, logger *zap.Logger) *HTTPRetriever {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRetriever{url: apiURL, client: client, logger: logger}
}

func (r *HTTPRetriever) IsBusy() bool {
	return r.active.Load() != 0
}

func (r *HTTPRetriever) RequestKey(ctx context.Context, param, token string) (string, error) {
	r.active.Inc()
	defer r.active.Dec()

	target, err := url.Parse(r.url)
	if err != nil {
		return "", errors.Wrap(err, "invalid key server url")
	}
	query := target.Query()
	query.Set(param, token)
	target.RawQuery = query.Encode()

	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req.WithContext(ctx))
	if err != nil {
		r.logger.Warn("failed to reach key server", zap.String("param", param), zap.Error(err))
		return "", errors.Wrap(ErrConnection, err.Error())
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(ErrConnection, err.Error())
	}
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		r.logger.Warn("key server refused request", zap.String("param", param), zap.Int("status_code", resp.StatusCode))
		return "", errors.Wrapf(ErrConnection, "key server answered %d", resp.StatusCode)
	}
	return string(body), nil
}
