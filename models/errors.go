package models

import "errors"

// ErrForbidden is returned by a message source when the bot may not read a conversation.
var ErrForbidden = errors.New("access denied")
