package linear

// Option configures LinearRegression and Ridge.
type Option func(*config)

type config struct {
	fitIntercept bool
	alpha        float64
}

func defaultConfig() config {
	return config{fitIntercept: true, alpha: 1.0}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(c *config) {
		c.fitIntercept = fit
	}
}

// WithAlpha sets the L2 penalty strength. Only Ridge uses it.
func WithAlpha(alpha float64) Option {
	return func(c *config) {
		c.alpha = alpha
	}
}
