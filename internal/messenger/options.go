package messenger

// SendOptions carries optional parts of an outbound text message.
type SendOptions struct {
	Keyboard Keyboard
	ReplyTo  int
}

// SendOption mutates SendOptions.
type SendOption func(*SendOptions)

// WithKeyboard attaches an inline keyboard.
func WithKeyboard(k Keyboard) SendOption {
	return func(o *SendOptions) {
		o.Keyboard = k
	}
}

// ReplyTo threads the message as a reply to messageID.
func ReplyTo(messageID int) SendOption {
	return func(o *SendOptions) {
		o.ReplyTo = messageID
	}
}

// Apply folds options into a SendOptions value.
func Apply(opts ...SendOption) SendOptions {
	var o SendOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
