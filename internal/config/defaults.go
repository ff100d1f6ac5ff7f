package config

// Default configuration values.
const (
	DefaultMakeTarget     = "test"
	DefaultCheckFlag      = "-c"
	DefaultSuffix         = ".test"
	DefaultJobs           = 1
	DefaultUnitTimeout    = "5m"
	DefaultFeatures       = "test/functional"
	DefaultExtension      = ".func"
	DefaultSuitePrefix    = "functional."
	DefaultStepTimeout    = "10s"
	DefaultOutputDirEnv   = "CUKE_OUTPUT_DIR"
	DefaultExcludedSubdir = "www"
)

// Default returns the configuration used when no fhtest.yaml exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyUnitDefaults(cfg)
	applyFunctionalDefaults(cfg)
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
}

func applyUnitDefaults(cfg *Config) {
	if cfg.Unit == nil {
		cfg.Unit = &UnitConfig{}
	}
	u := cfg.Unit
	if u.Directory == "" {
		u.Directory = "."
	}
	if u.Compile == nil {
		compile := true
		u.Compile = &compile
	}
	if u.MakeTarget == "" {
		u.MakeTarget = DefaultMakeTarget
	}
	if u.CheckFlag == "" {
		u.CheckFlag = DefaultCheckFlag
	}
	if u.Suffix == "" {
		u.Suffix = DefaultSuffix
	}
	if u.Exclude == nil {
		u.Exclude = []string{DefaultExcludedSubdir}
	}
	if u.Jobs == 0 {
		u.Jobs = DefaultJobs
	}
	if u.Timeout == "" {
		u.Timeout = DefaultUnitTimeout
	}
}

func applyFunctionalDefaults(cfg *Config) {
	if cfg.Functional == nil {
		cfg.Functional = &FunctionalConfig{}
	}
	f := cfg.Functional
	if f.Features == "" {
		f.Features = DefaultFeatures
	}
	if f.Extension == "" {
		f.Extension = DefaultExtension
	}
	if f.SuitePrefix == "" {
		f.SuitePrefix = DefaultSuitePrefix
	}
	if f.DefaultTimeout == "" {
		f.DefaultTimeout = DefaultStepTimeout
	}
}
