package domain

// Option is a single build-tool argument.
type Option struct {
	Key   string
	Value string
}

// Options is an ordered key/value argument list.
type Options []Option

// Set replaces the value of an existing key in place, or appends a new key.
func (o *Options) Set(key, value string) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Option{Key: key, Value: value})
}

// Get returns the value of key.
func (o Options) Get(key string) (string, bool) {
	for _, opt := range o {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return "", false
}

// Clone returns an independent copy.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	c := make(Options, len(o))
	copy(c, o)
	return c
}

// MakeArgs renders options for make and configure: key=value, or key alone when value is empty.
func (o Options) MakeArgs() []string {
	args := make([]string, 0, len(o))
	for _, opt := range o {
		if opt.Value == "" {
			args = append(args, opt.Key)
			continue
		}
		args = append(args, opt.Key+"="+opt.Value)
	}
	return args
}

// CMakeArgs renders options as cache definitions: -Dkey=value.
func (o Options) CMakeArgs() []string {
	args := make([]string, 0, len(o))
	for _, opt := range o {
		args = append(args, "-D"+opt.Key+"="+opt.Value)
	}
	return args
}
