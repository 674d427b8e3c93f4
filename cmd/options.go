package cmd

// Options holds the shared command-line options for the morph CLI.
type Options struct {
	To          string // Output format[-type]
	From        string // Input format[-type], empty = auto-detect
	FileList    string // Path to a newline-delimited list of input files
	Concurrency int    // Simultaneous conversions, 0 = use config
	Verbosity   int
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTo sets the output format (e.g. "pdf", "md-gfm").
func WithTo(format string) Option {
	return func(o *Options) {
		o.To = format
	}
}

// WithFrom sets the input format instead of auto-detecting it.
func WithFrom(format string) Option {
	return func(o *Options) {
		o.From = format
	}
}

// WithFileList sets the path to a newline-delimited list of input files.
func WithFileList(path string) Option {
	return func(o *Options) {
		o.FileList = path
	}
}

// WithConcurrency sets the number of simultaneous conversions.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}
