package common

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/objkv/lib/db"
)

// Config holds everything needed to open a store from the command line.
type Config struct {
	// Engine is one of maple, oak or elm
	Engine db.Implementation
	// Codec is the record codec (gob, json)
	Codec string
	// DataDir holds the database files of the file based engines
	DataDir string

	// Database name and schema version
	Name    string
	Version uint64

	// TimeoutSecond bounds every operation (0 = no timeout)
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Engine {
	case db.ImplMaple, db.ImplOak, db.ImplElm:
	default:
		return fmt.Errorf("invalid engine %q (expected one of: maple, oak, elm)", c.Engine)
	}
	if c.Name == "" {
		return fmt.Errorf("database name must not be empty")
	}
	if c.Version == 0 {
		return fmt.Errorf("database version must be at least 1")
	}
	if c.Engine != db.ImplMaple && c.DataDir == "" {
		return fmt.Errorf("engine %s needs a data directory", c.Engine)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Database")
	addField("Name", c.Name)
	addField("Version", fmt.Sprintf("%d", c.Version))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Storage")
	addField("Engine", string(c.Engine))
	addField("Codec", c.Codec)
	if c.Engine != db.ImplMaple {
		addField("Data Directory", c.DataDir)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
