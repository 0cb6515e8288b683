package lookup

// ValidationError reports one configuration field that cannot be used.
type ValidationError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ValidateOptions checks the fields a lookup cannot run without.
func ValidateOptions(opts Options) []ValidationError {
	errs := []ValidationError{}
	if opts.ClientID == "" {
		errs = append(errs, ValidationError{Key: "clientId", Message: "You must provide a Client ID option."})
	}
	if opts.ClientSecret == "" {
		errs = append(errs, ValidationError{Key: "clientSecret", Message: "You must provide a Client Secret option."})
	}
	return errs
}
