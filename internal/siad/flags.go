package siad

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	FlagAPIAddr      = "api-addr"
	FlagRPCAddr      = "rpc-addr"
	FlagHostAddr     = "host-addr"
	FlagSiaDirectory = "sia-directory"

	// OutputLogName is the file that receives siad's stdout and stderr.
	OutputLogName = "siad-output.log"
)

// Settings maps siad flag names (without leading dashes) to values. A value
// of false or nil omits the flag; anything else renders as --key=value.
type Settings map[string]any

// DefaultSettings returns the flags every launch starts from.
func DefaultSettings() Settings {
	return Settings{
		FlagAPIAddr:  "localhost:9980",
		FlagHostAddr: ":9982",
		FlagRPCAddr:  ":9981",
	}
}

// MergeSettings layers overrides on top of the defaults. Keys present in
// overrides always win, including an explicit false that disables a default.
func MergeSettings(overrides Settings) Settings {
	merged := DefaultSettings()
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}

// BuildFlags renders settings as command-line flags sorted by key.
func BuildFlags(settings Settings) []string {
	keys := make([]string, 0, len(settings))
	for key, value := range settings {
		if omitFlag(value) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	flags := make([]string, 0, len(keys))
	for _, key := range keys {
		flags = append(flags, "--"+key+"="+formatFlagValue(settings[key]))
	}
	return flags
}

// OutputLogPath returns where siad output is written: inside sia-directory
// when it is set, otherwise the current directory.
func OutputLogPath(settings Settings) string {
	if dir, ok := settings[FlagSiaDirectory].(string); ok && dir != "" {
		return filepath.Join(dir, OutputLogName)
	}
	return OutputLogName
}

func omitFlag(value any) bool {
	if value == nil {
		return true
	}
	b, ok := value.(bool)
	return ok && !b
}

func formatFlagValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
