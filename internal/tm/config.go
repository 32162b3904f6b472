package tm

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultSWRestarts and defaultHWRestarts are the retry budgets: SpecSW
// is promoted to a serial dispatch after SW_RESTARTS restarts; hardware
// begins are retried up to HW_RESTARTS times before falling through to
// software.
const (
	defaultSWRestarts = 5
	defaultHWRestarts = 16
)

// budgetFile is the optional TOML shape read from ITM_CONFIG_FILE. Both
// fields are optional; zero/absent means "use the built-in default".
type budgetFile struct {
	SWRestarts int `toml:"sw_restarts"`
	HWRestarts int `toml:"hw_restarts"`
}

// Config carries the process-wide tunables. Only ITM_DEFAULT_METHOD_GROUP
// is required; SWRestarts/HWRestarts are ambient configuration plumbing
// layered on top.
type Config struct {
	SWRestarts int
	HWRestarts int
}

// parseMethodGroupEnv parses ITM_DEFAULT_METHOD_GROUP exactly as
// beginend.cc's parse_default_method_group does: whitespace-tolerant,
// only "invalbrid" recognized, empty/absent defaults to it, anything else
// is fatal.
func parseMethodGroupEnv() {
	env, ok := os.LookupEnv("ITM_DEFAULT_METHOD_GROUP")
	if !ok {
		return
	}
	trimmed := strings.TrimSpace(env)
	if trimmed == "" {
		return
	}
	if trimmed != "invalbrid" {
		fatalf("unknown TM method group in environment variable ITM_DEFAULT_METHOD_GROUP: %q", env)
	}
}

// loadConfig resolves the retry budgets: spec defaults, optionally
// overridden by the file named in ITM_CONFIG_FILE.
func loadConfig() Config {
	cfg := Config{SWRestarts: defaultSWRestarts, HWRestarts: defaultHWRestarts}
	path := os.Getenv("ITM_CONFIG_FILE")
	if path == "" {
		return cfg
	}
	var bf budgetFile
	if _, err := toml.DecodeFile(path, &bf); err != nil {
		logger().Warn("ignoring unreadable ITM_CONFIG_FILE", "path", path, "err", err)
		return cfg
	}
	if bf.SWRestarts > 0 {
		cfg.SWRestarts = bf.SWRestarts
	}
	if bf.HWRestarts > 0 {
		cfg.HWRestarts = bf.HWRestarts
	}
	return cfg
}
