package keys

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	EmailParam    = "email"
	JoinPathParam = "joinpath"
)

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)

func ValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(strings.ToLower(email))
}

// JoinPath names a session, and optionally a conversation inside it:
// "<session>", "<session>/" or "<session>/<conversation>".
type JoinPath struct {
	SessionID      string
	ConversationID string
}

func ParseJoinPath(input string) (JoinPath, error) {
	parts := strings.Split(input, "/")
	switch {
	case len(parts) == 1 || (len(parts) == 2 && parts[1] == ""):
		if CouldBeKey(parts[0]) {
			return JoinPath{SessionID: parts[0]}, nil
		}
	case len(parts) == 2:
		if CouldBeKey(parts[0]) {
			return JoinPath{SessionID: parts[0], ConversationID: parts[1]}, nil
		}
	}
	return JoinPath{}, errors.Wrap(ErrInvalidJoinPath, input)
}

func (p JoinPath) HasConversation() bool {
	return p.ConversationID != ""
}

func (p JoinPath) String() string {
	return p.SessionID + "/" + p.ConversationID
}

// JoinDetails is the query string handed to a participant invited to a
// conversation: "email=<address>&joinpath=<path>".
type JoinDetails struct {
	Email    string
	JoinPath JoinPath
}

func ParseJoinDetails(input string) (JoinDetails, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(input, "&"))
	if err != nil {
		return JoinDetails{}, errors.Wrap(ErrInvalidJoinDetails, err.Error())
	}
	email := values.Get(EmailParam)
	if !ValidEmail(email) {
		return JoinDetails{}, errors.Wrapf(ErrInvalidJoinDetails, "email %q", email)
	}
	path, err := ParseJoinPath(values.Get(JoinPathParam))
	if err != nil {
		return JoinDetails{}, errors.Wrap(ErrInvalidJoinDetails, err.Error())
	}
	return JoinDetails{Email: email, JoinPath: path}, nil
}

func (d JoinDetails) String() string {
	return "&" + EmailParam + "=" + d.Email + "&" + JoinPathParam + "=" + d.JoinPath.String()
}
