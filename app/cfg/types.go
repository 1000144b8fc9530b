package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Reader configuration
	UserAgent        string
	FetchTimeout     int
	MaxDiscoveryHops int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
