// Package config loads the orchestrator's Environment (spec §6
// "Environment") from a YAML file, PERMABFT_-prefixed environment
// variables, and CLI flags, using github.com/spf13/viper layered over
// github.com/spf13/pflag — the precedence order viper applies natively
// (flag > env > file > default).
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/permabft/chain/consensus/tbft"
	"github.com/permabft/chain/core/types"
)

// Environment is the node's static configuration for one network (spec
// §6): chain identity, genesis linkage, the validator set, and the
// policy knobs the transaction pool and block builder enforce.
type Environment struct {
	ChainID       uint64
	GenesisHash   types.Hash256
	Validators    []tbft.Validator
	BlockTime     time.Duration
	BlockGasLimit uint64
	MinGasPrice   *big.Int
	ListenAddr    string
	DataDir       string
	MetricsAddr   string
}

// Validate checks the invariants Environment must hold before a Node can
// be constructed from it: a non-empty validator set, a positive block
// time and a positive block gas limit (spec §6, §4.8).
func (e Environment) Validate() error {
	if len(e.Validators) == 0 {
		return fmt.Errorf("config: validator set must not be empty")
	}
	if e.BlockTime <= 0 {
		return fmt.Errorf("config: block_time must be positive")
	}
	if e.BlockGasLimit == 0 {
		return fmt.Errorf("config: block_gas_limit must be positive")
	}
	return nil
}

type validatorEntry struct {
	Address     string `mapstructure:"address"`
	PublicKey   string `mapstructure:"public_key"`
	VotingPower uint64 `mapstructure:"voting_power"`
}

// BindFlags registers the flags Load reads, so cmd/permabftd can expose
// them on its CLI surface without duplicating the field list.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a YAML config file")
	flags.Uint64("chain-id", 0, "chain identifier")
	flags.String("genesis-hash", "", "genesis block hash, 0x-prefixed hex")
	flags.Duration("block-time", 3*time.Second, "target interval between proposed blocks")
	flags.Uint64("block-gas-limit", 30_000_000, "maximum gas_limit sum for one block")
	flags.String("min-gas-price", "0", "minimum effective gas price accepted by the pool, in wei")
	flags.String("listen-addr", "127.0.0.1:26656", "consensus transport listen address")
	flags.String("data-dir", "./data", "directory for the persistent store")
	flags.String("metrics-addr", "127.0.0.1:9100", "Prometheus /metrics listen address")
}

// Load reads an Environment from, in ascending precedence: built-in
// defaults, a YAML file named by --config (if any), PERMABFT_-prefixed
// environment variables, then flags bound via BindFlags.
func Load(flags *pflag.FlagSet) (Environment, error) {
	v := viper.New()
	v.SetEnvPrefix("PERMABFT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Environment{}, fmt.Errorf("config: bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Environment{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var rawValidators []validatorEntry
	if err := v.UnmarshalKey("validators", &rawValidators); err != nil {
		return Environment{}, fmt.Errorf("config: parse validators: %w", err)
	}
	validators := make([]tbft.Validator, 0, len(rawValidators))
	for i, rv := range rawValidators {
		addr, err := types.ParseAddress(rv.Address)
		if err != nil {
			return Environment{}, fmt.Errorf("config: validators[%d].address: %w", i, err)
		}
		pub, err := parseHexBytes(rv.PublicKey)
		if err != nil {
			return Environment{}, fmt.Errorf("config: validators[%d].public_key: %w", i, err)
		}
		validators = append(validators, tbft.Validator{
			Address:     addr,
			PublicKey:   pub,
			VotingPower: rv.VotingPower,
		})
	}

	var genesisHash types.Hash256
	if s := v.GetString("genesis-hash"); s != "" {
		h, err := types.ParseHash(s)
		if err != nil {
			return Environment{}, fmt.Errorf("config: genesis-hash: %w", err)
		}
		genesisHash = h
	}

	minGasPrice, ok := new(big.Int).SetString(v.GetString("min-gas-price"), 10)
	if !ok {
		return Environment{}, fmt.Errorf("config: min-gas-price %q is not a valid base-10 integer", v.GetString("min-gas-price"))
	}

	env := Environment{
		ChainID:       v.GetUint64("chain-id"),
		GenesisHash:   genesisHash,
		Validators:    validators,
		BlockTime:     v.GetDuration("block-time"),
		BlockGasLimit: v.GetUint64("block-gas-limit"),
		MinGasPrice:   minGasPrice,
		ListenAddr:    v.GetString("listen-addr"),
		DataDir:       v.GetString("data-dir"),
		MetricsAddr:   v.GetString("metrics-addr"),
	}
	if err := env.Validate(); err != nil {
		return Environment{}, err
	}
	return env, nil
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
