package insights

// Config carries the facility economics the generators price findings with,
// plus ranking and cap settings. Zero values mean "use the default".
type Config struct {
	ORHourlyRate         float64  `json:"orHourlyRate,omitempty"`
	RevenuePerORMinute   float64  `json:"revenuePerORMinute,omitempty"`
	RevenuePerCase       float64  `json:"revenuePerCase,omitempty"`
	OperatingDaysPerYear int      `json:"operatingDaysPerYear,omitempty"`
	MaxInsights          int      `json:"maxInsights,omitempty"`
	MinSeverityToShow    Severity `json:"minSeverityToShow,omitempty"`
}

const (
	defaultRevenuePerORMinute   = 36.0
	defaultRevenuePerCase       = 2500.0
	defaultOperatingDaysPerYear = 250
	defaultMaxInsights          = 6
)

// Resolve fills unset fields with defaults. An hourly OR rate, when present,
// wins over any explicit per-minute figure.
func (c Config) Resolve() Config {
	out := c

	if out.ORHourlyRate > 0 {
		out.RevenuePerORMinute = out.ORHourlyRate / 60
	}
	if out.RevenuePerORMinute <= 0 {
		out.RevenuePerORMinute = defaultRevenuePerORMinute
	}
	if out.RevenuePerCase <= 0 {
		out.RevenuePerCase = defaultRevenuePerCase
	}
	if out.OperatingDaysPerYear <= 0 {
		out.OperatingDaysPerYear = defaultOperatingDaysPerYear
	}
	if out.MaxInsights <= 0 {
		out.MaxInsights = defaultMaxInsights
	}

	switch out.MinSeverityToShow {
	case SeverityCritical, SeverityWarning, SeverityPositive, SeverityInfo:
	default:
		out.MinSeverityToShow = SeverityInfo
	}

	return out
}

// Merge overlays the non-zero fields of override onto base. Used by the HTTP
// handler to apply per-request settings on top of server defaults.
func Merge(base, override Config) Config {
	out := base
	if override.ORHourlyRate > 0 {
		out.ORHourlyRate = override.ORHourlyRate
	}
	if override.RevenuePerORMinute > 0 {
		out.RevenuePerORMinute = override.RevenuePerORMinute
	}
	if override.RevenuePerCase > 0 {
		out.RevenuePerCase = override.RevenuePerCase
	}
	if override.OperatingDaysPerYear > 0 {
		out.OperatingDaysPerYear = override.OperatingDaysPerYear
	}
	if override.MaxInsights > 0 {
		out.MaxInsights = override.MaxInsights
	}
	if override.MinSeverityToShow != "" {
		out.MinSeverityToShow = override.MinSeverityToShow
	}
	return out
}
