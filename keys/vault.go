package keys

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const DefaultVaultPrefix = "caucus/keys"

// VaultRetriever reads keys from a vault KV v2 engine. The secret stored at
// secret/data/<prefix>/<token> maps key names to keys.
type VaultRetriever struct {
	api    *api.Client
	prefix string
	active atomic.Int32
}

var _ Retriever = &VaultRetriever{}

func NewVaultRetriever(client *api.Client, prefix string) *VaultRetriever {
	if prefix == "" {
		prefix = DefaultVaultPrefix
	}
	return &VaultRetriever{api: client, prefix: prefix}
}

// NewVaultClient builds a client from the VAULT_* environment. The token is
// read from secrets/vault_token when present, VAULT_TOKEN otherwise.
func NewVaultClient() (*api.Client, error) {
	client, err := api.NewClient(api.DefaultConfig())
	if err != nil {
		return nil, err
	}
	token, err := ioutil.ReadFile("secrets/vault_token")
	if err != nil {
		client.SetToken(os.Getenv("VAULT_TOKEN"))
		return client, nil
	}
	client.SetToken(string(token))
	return client, nil
}

func (r *VaultRetriever) IsBusy() bool {
	return r.active.Load() != 0
}

func (r *VaultRetriever) RequestKey(ctx context.Context, param, token string) (string, error) {
	r.active.Inc()
	defer r.active.Dec()

	path := fmt.Sprintf("secret/data/%s/%s", r.prefix, token)
	response, err := r.api.Logical().Read(path)
	if err != nil {
		return "", errors.Wrap(ErrConnection, err.Error())
	}
	if response == nil {
		return "", errors.Wrap(ErrKeyNotFound, param)
	}
	data, ok := response.Data["data"].(map[string]interface{})
	if !ok {
		return "", errors.Wrap(ErrKeyNotFound, param)
	}
	key, ok := data[param].(string)
	if !ok || key == "" {
		return "", errors.Wrap(ErrKeyNotFound, param)
	}
	return key, nil
}
