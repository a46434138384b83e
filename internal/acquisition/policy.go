package acquisition

// DefaultErrorLogPolicy logs the first 10 errors and every 50th after that.
var DefaultErrorLogPolicy = ErrorLogPolicy{Burst: 10, Every: 50}

// ErrorLogPolicy decides which wait errors get logged so a persistently
// failing wait does not flood the output.
type ErrorLogPolicy struct {
	Burst int `yaml:"burst" json:"burst"` // Errors logged unconditionally
	Every int `yaml:"every" json:"every"` // After the burst, log when the count is a multiple of Every; <= 0 disables
}

// ShouldLog reports whether an error should be logged given the number of
// errors seen before it.
func (p ErrorLogPolicy) ShouldLog(count int) bool {
	if count < p.Burst {
		return true
	}
	return p.Every > 0 && count%p.Every == 0
}
