package sys

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dedis/raffle/apps/lottery"
	"golang.org/x/xerrors"
)

// Defaults applied to zero values.
const (
	DefaultEntranceFee  = lottery.Ether / 100
	DefaultInterval     = 30 * time.Second
	DefaultNumWords     = 1
	DefaultVault        = "vault"
	DefaultDBPath       = "raffle.db"
	DefaultKeeperPeriod = time.Second
	DefaultOracleDelay  = 500 * time.Millisecond
	DefaultRounds       = 1
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = xerrors.New("sys: invalid configuration")

// Duration is a time.Duration read from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Player is a simulated participant.
type Player struct {
	Name    string `toml:"name"`
	Balance uint64 `toml:"balance"`
	// Entries is the number of entries per round.
	Entries int `toml:"entries"`
}

// Config is the raffle configuration file.
type Config struct {
	EntranceFee  uint64   `toml:"entrance_fee"`
	Interval     Duration `toml:"interval"`
	NumWords     uint32   `toml:"num_words"`
	Vault        string   `toml:"vault"`
	DBPath       string   `toml:"db_path"`
	KeeperPeriod Duration `toml:"keeper_period"`
	OracleDelay  Duration `toml:"oracle_delay"`
	// OracleKey is a hex encoded BLS private key. Empty means a fresh key.
	OracleKey string   `toml:"oracle_key"`
	Rounds    int      `toml:"rounds"`
	Players   []Player `toml:"players"`
}

// Default returns a configuration with every default set.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig reads a TOML file, applies the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, xerrors.Errorf("reading %s: %v", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseConfig is LoadConfig on an in-memory document.
func ParseConfig(doc string) (*Config, error) {
	c := &Config{}
	if _, err := toml.Decode(doc, c); err != nil {
		return nil, xerrors.Errorf("parsing config: %v", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.EntranceFee == 0 {
		c.EntranceFee = uint64(DefaultEntranceFee)
	}
	if c.Interval.Duration == 0 {
		c.Interval.Duration = DefaultInterval
	}
	if c.NumWords == 0 {
		c.NumWords = DefaultNumWords
	}
	if c.Vault == "" {
		c.Vault = DefaultVault
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.KeeperPeriod.Duration == 0 {
		c.KeeperPeriod.Duration = DefaultKeeperPeriod
	}
	if c.OracleDelay.Duration == 0 {
		c.OracleDelay.Duration = DefaultOracleDelay
	}
	if c.Rounds == 0 {
		c.Rounds = DefaultRounds
	}
	for i := range c.Players {
		if c.Players[i].Entries == 0 {
			c.Players[i].Entries = 1
		}
	}
}

// Validate checks the values that have no sensible default.
func (c *Config) Validate() error {
	if c.Interval.Duration < 0 {
		return xerrors.Errorf("negative interval: %w", ErrInvalidConfig)
	}
	if c.KeeperPeriod.Duration < 0 || c.OracleDelay.Duration < 0 {
		return xerrors.Errorf("negative period: %w", ErrInvalidConfig)
	}
	if c.Rounds < 0 {
		return xerrors.Errorf("negative number of rounds: %w", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, p := range c.Players {
		if p.Name == "" {
			return xerrors.Errorf("player without a name: %w", ErrInvalidConfig)
		}
		if p.Name == c.Vault {
			return xerrors.Errorf("player %s is the vault: %w", p.Name, ErrInvalidConfig)
		}
		if seen[p.Name] {
			return xerrors.Errorf("duplicate player %s: %w", p.Name, ErrInvalidConfig)
		}
		if p.Entries < 0 {
			return xerrors.Errorf("player %s has negative entries: %w", p.Name, ErrInvalidConfig)
		}
		seen[p.Name] = true
	}
	return nil
}

// LotteryConfig returns the machine configuration.
func (c *Config) LotteryConfig() lottery.Config {
	return lottery.Config{
		EntranceFee: lottery.Amount(c.EntranceFee),
		Interval:    c.Interval.Duration,
		NumWords:    c.NumWords,
		Vault:       lottery.Address(c.Vault),
	}
}
