package schedule

// Option configures an Allocator.
type Option func(a *Allocator)

// WithPolicy sets the send-window sizing policy.
func WithPolicy(policy Policy) Option {
	return func(a *Allocator) {
		a.policy = policy
	}
}

// WithStartingOffset sets the first slot handed to the root's subtree (0 or 1).
func WithStartingOffset(offset int) Option {
	return func(a *Allocator) {
		a.startingOffset = offset
	}
}
