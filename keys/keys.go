package keys

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidJoinKey     = errors.New("invalid join key")
	ErrInvalidJoinPath    = errors.New("invalid join path")
	ErrInvalidJoinDetails = errors.New("invalid join details")
)

// Generate returns a new random key.
func Generate() string {
	return uuid.New().String()
}

// CouldBeKey reports whether candidate has the shape of a generated key.
func CouldBeKey(candidate string) bool {
	if len(candidate) != 36 {
		return false
	}
	_, err := uuid.Parse(candidate)
	return err == nil
}

// JoinKey is the secret a participant presents to join a conversation,
// optionally followed by the id of the shared container to attach to:
// "<key>" or "<key>/<container>".
type JoinKey struct {
	Key         string
	ContainerID string
}

func ParseJoinKey(input string) (JoinKey, error) {
	parts := strings.Split(input, "/")
	switch len(parts) {
	case 1:
		if CouldBeKey(parts[0]) {
			return JoinKey{Key: parts[0]}, nil
		}
	case 2:
		if CouldBeKey(parts[0]) && parts[1] != "" {
			return JoinKey{Key: parts[0], ContainerID: parts[1]}, nil
		}
	}
	return JoinKey{}, errors.Wrap(ErrInvalidJoinKey, input)
}

func (k JoinKey) HasContainer() bool {
	return k.ContainerID != ""
}

func (k JoinKey) String() string {
	return k.Key + "/" + k.ContainerID
}
