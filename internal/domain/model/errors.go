package model

import "errors"

var (
	// ErrEmptyMessage is returned when a text send is blank or whitespace only.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrUploadInProgress is returned when an image send is attempted while
	// another image send is still in flight.
	ErrUploadInProgress = errors.New("image upload already in progress")

	// ErrMissingCredentials is returned by the login and registration forms
	// when email or password is blank.
	ErrMissingCredentials = errors.New("fill in email and password")

	// ErrNoSession is returned when a call needs a live session and the
	// client is signed out or running on an offline identity.
	ErrNoSession = errors.New("no live session")

	// ErrFeedNotMounted is returned when an operation needs the chat view but
	// no identity has been routed to it.
	ErrFeedNotMounted = errors.New("message feed not mounted")
)

// Notice is a user-facing failure message, the kind the chat view shows in
// an alert. It is returned as an error from image sends.
type Notice struct {
	Title   string
	Message string
	Err     error
}

func (n *Notice) Error() string {
	if n.Err != nil {
		return n.Title + ": " + n.Message + ": " + n.Err.Error()
	}
	return n.Title + ": " + n.Message
}

func (n *Notice) Unwrap() error {
	return n.Err
}
