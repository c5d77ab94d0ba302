// Package config loads the settings of the shutdown monitor and of spitool.
//
// Settings are looked up, highest priority first, in command-line flags,
// OPENCPN_ prefixed environment variables, an optional JSON file named by the
// config-file flag, and the compiled-in defaults.  Keys are dotted, so
// OPENCPN_PKILL_DELAY, --pkill-delay and {"pkill":{"delay":5}} all set
// pkill.delay.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "OPENCPN_"

// Keys that have no default and must be supplied by the environment.
const (
	KeyPkillDelay = "pkill.delay"
	KeyUser       = "user"
)

const configFileKey = "config.file"

// Backends understood by gpio.backend.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
)

// defaults mirror the Chart Plotter Hat wiring on a Raspberry Pi.
var defaults = map[string]interface{}{
	"pkill.app":     "opencpn",
	"gpio.backend":  BackendCdev,
	"gpio.chip":     "gpiochip0",
	"shutdown.pin":  22,
	"running.pin":   23,
	"cs.pin":        8,
	"cs.release":    true,
	"spi.device":    "/dev/spidev0.0",
	"spi.speed":     32000,
	"poll.interval": "1s",
	"log.file":      "",
	"log.debug":     false,
	"status.addr":   "",
	"status.cert":   "",
	"status.key":    "",
}

// GPIO selects how digital lines are opened.
type GPIO struct {
	// Backend is BackendCdev or BackendPeriph.
	Backend string
	// Chip is the GPIO character device, used by the cdev backend only.
	Chip string
}

// Log configures logging.  An empty File logs to the console only.
type Log struct {
	File  string
	Debug bool
}

// Status configures the optional HTTP status endpoint.  An empty Addr
// disables it; CertFile and KeyFile together enable TLS.
type Status struct {
	Addr     string
	CertFile string
	KeyFile  string
}

// Monitor is the configuration of the shutdown monitor.
type Monitor struct {
	GPIO         GPIO
	ShutdownPin  int
	RunningPin   int
	PollInterval time.Duration

	// PkillUser owns the applications stopped before power off.
	PkillUser string
	// PkillApp is the process name handed to pkill.
	PkillApp string
	// PkillDelay is the grace period between pkill and power off.
	PkillDelay time.Duration

	Log    Log
	Status Status
}

// Tool is the configuration of spitool.
type Tool struct {
	GPIO       GPIO
	CSPin      int
	SPIDevice  string
	SPISpeedHz int64
	// ReleaseCS deasserts chip-select even when an exchange fails.
	ReleaseCS bool

	Log Log
}

// Load builds the layered configuration.  args are the command-line
// arguments without the program name.
func Load(args []string) *config.Config {
	if args == nil {
		args = []string{}
	}
	def := dict.New(dict.WithMap(defaults))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags), pflag.WithCommandLine(args)),
		env.New(env.WithEnvPrefix(EnvPrefix)),
		config.WithDefault(def))
	if v, err := cfg.Get(configFileKey); err == nil && v.String() != "" {
		cfg.Append(
			blob.NewConfigFile(cfg, configFileKey, v.String(), json.NewDecoder()))
	}
	return cfg
}

// LoadMonitor loads and validates the shutdown monitor configuration.
func LoadMonitor(args []string) (Monitor, error) {
	return MonitorFrom(Load(args))
}

// LoadTool loads and validates the spitool configuration.
func LoadTool(args []string) (Tool, error) {
	return ToolFrom(Load(args))
}

// MonitorFrom extracts the monitor settings from c.
func MonitorFrom(c *config.Config) (Monitor, error) {
	r := reader{c: c}
	m := Monitor{
		GPIO:         r.gpio(),
		ShutdownPin:  r.getInt("shutdown.pin"),
		RunningPin:   r.getInt("running.pin"),
		PollInterval: r.getDuration("poll.interval"),
		PkillApp:     r.getString("pkill.app"),
		Log:          r.log(),
		Status: Status{
			Addr:     r.getString("status.addr"),
			CertFile: r.getString("status.cert"),
			KeyFile:  r.getString("status.key"),
		},
	}
	if r.err != nil {
		return Monitor{}, r.err
	}

	// check that we got our required environment vars
	delay, err := c.Get(KeyPkillDelay)
	if err != nil {
		return Monitor{}, errEnvVarNotSet(KeyPkillDelay)
	}
	secs, err := strconv.ParseUint(strings.TrimSpace(delay.String()), 10, 32)
	if err != nil {
		return Monitor{}, errors.Wrapf(err, "%s requires delay in seconds", envName(KeyPkillDelay))
	}
	m.PkillDelay = time.Duration(secs) * time.Second

	user, err := c.Get(KeyUser)
	if err != nil || user.String() == "" {
		return Monitor{}, errEnvVarNotSet(KeyUser)
	}
	m.PkillUser = user.String()

	if m.PollInterval <= 0 {
		return Monitor{}, errors.Errorf("poll.interval must be positive, got %v", m.PollInterval)
	}
	if m.Status.CertFile != "" && m.Status.KeyFile == "" || m.Status.CertFile == "" && m.Status.KeyFile != "" {
		return Monitor{}, errors.New("status.cert and status.key must be set together")
	}
	return m, nil
}

// ToolFrom extracts the spitool settings from c.
func ToolFrom(c *config.Config) (Tool, error) {
	r := reader{c: c}
	t := Tool{
		GPIO:       r.gpio(),
		CSPin:      r.getInt("cs.pin"),
		SPIDevice:  r.getString("spi.device"),
		SPISpeedHz: int64(r.getInt("spi.speed")),
		ReleaseCS:  r.getBool("cs.release"),
		Log:        r.log(),
	}
	if r.err != nil {
		return Tool{}, r.err
	}
	if t.SPISpeedHz <= 0 {
		return Tool{}, errors.Errorf("spi.speed must be positive, got %d", t.SPISpeedHz)
	}
	return t, nil
}

// envName returns the environment variable that sets key.
func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func errEnvVarNotSet(key string) error {
	return errors.Errorf("environment variable %s not found", envName(key))
}

// reader collects the first lookup error so callers can read a batch of
// keys and check once.
type reader struct {
	c   *config.Config
	err error
}

func (r *reader) get(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, err := r.c.Get(key)
	if err != nil {
		r.err = errors.Wrapf(err, "config %s", key)
		return "", false
	}
	return strings.TrimSpace(v.String()), true
}

func (r *reader) getString(key string) string {
	s, _ := r.get(key)
	return s
}

func (r *reader) getInt(key string) int {
	s, ok := r.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.err = errors.Wrapf(err, "config %s", key)
	}
	return n
}

func (r *reader) getBool(key string) bool {
	s, ok := r.get(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		r.err = errors.Wrapf(err, "config %s", key)
	}
	return b
}

func (r *reader) getDuration(key string) time.Duration {
	s, ok := r.get(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.err = errors.Wrapf(err, "config %s", key)
	}
	return d
}

func (r *reader) gpio() GPIO {
	g := GPIO{
		Backend: r.getString("gpio.backend"),
		Chip:    r.getString("gpio.chip"),
	}
	if r.err == nil && g.Backend != BackendCdev && g.Backend != BackendPeriph {
		r.err = errors.Errorf("gpio.backend must be %q or %q, got %q", BackendCdev, BackendPeriph, g.Backend)
	}
	return g
}

func (r *reader) log() Log {
	return Log{
		File:  r.getString("log.file"),
		Debug: r.getBool("log.debug"),
	}
}
