package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/objkv/lib/common"
	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/codec"
	"github.com/ValentinKolb/objkv/lib/db/engines/elm"
	"github.com/ValentinKolb/objkv/lib/db/engines/maple"
	"github.com/ValentinKolb/objkv/lib/db/engines/oak"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/ValentinKolb/objkv/lib/store/lstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the flags needed to open a store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, "oak", WrapString("The storage engine (maple = in-memory, oak = bolt file, elm = sqlite file)"))

	key = "codec"
	cmd.PersistentFlags().String(key, "gob", WrapString("The record codec (gob, json). A database can only be opened with the codec it was created with"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("The directory holding the database files (ignored for maple)"))

	key = "name"
	cmd.PersistentFlags().String(key, "objkv", WrapString("The name of the database"))

	key = "db-version"
	cmd.PersistentFlags().Uint64(key, 1, WrapString("The schema version. A version higher than the stored one runs the schema upgrade"))

	key = "timeout"
	cmd.PersistentFlags().Int64(key, 10, WrapString("The timeout in seconds of every operation (0 = no timeout)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("objkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the store configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		Engine:        db.Implementation(viper.GetString("engine")),
		Codec:         viper.GetString("codec"),
		DataDir:       viper.GetString("data-dir"),
		Name:          viper.GetString("name"),
		Version:       viper.GetUint64("db-version"),
		TimeoutSecond: viper.GetInt64("timeout"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// GetOpener creates the opener of the configured engine
func GetOpener(conf *common.Config) (db.Opener, error) {
	c, err := codec.ByName(conf.Codec)
	if err != nil {
		return nil, err
	}

	switch conf.Engine {
	case db.ImplMaple:
		return maple.NewOpener(&maple.DBOptions{Codec: c}), nil
	case db.ImplOak:
		if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts := oak.DefaultOptions(conf.DataDir)
		opts.Codec = c
		return oak.NewOpener(opts), nil
	case db.ImplElm:
		if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts := elm.DefaultOptions(conf.DataDir)
		opts.Codec = c
		return elm.NewOpener(opts), nil
	default:
		return nil, fmt.Errorf("invalid engine %s", conf.Engine)
	}
}

// OpenStore validates the configuration, sets up logging and opens the store
func OpenStore(conf *common.Config) (store.IStore, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(conf.LogLevel, nil); err != nil {
		return nil, err
	}
	opener, err := GetOpener(conf)
	if err != nil {
		return nil, err
	}
	ctx, cancel := Context(conf)
	defer cancel()
	return lstore.Open(ctx, opener, conf.Name, conf.Version, store.DefaultSchema())
}

// Context returns the context for a single operation
func Context(conf *common.Config) (context.Context, context.CancelFunc) {
	if conf.TimeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(conf.TimeoutSecond)*time.Second)
}

// --------------------------------------------------------------------------
// Arguments and output
// --------------------------------------------------------------------------

// ParseRecord parses a record given as a JSON object
func ParseRecord(text string) (db.Record, error) {
	var record db.Record
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("record must be a JSON object, got null")
	}
	return record, nil
}

// ParseValue interprets a key or index value given on the command line.
// Numbers become float64 (the way json decodes them), everything else is a string.
func ParseValue(text string) any {
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

// PrintJSON prints v as indented JSON
func PrintJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
