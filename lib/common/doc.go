// Package common contains the configuration and logging setup shared by the
// objkv command line tool.
//
// All packages of the module log through named loggers of dragonboats logger
// package (logger.GetLogger("store"), ...). InitLoggers installs a factory
// that prints every line as
//
//	<date> <time> LEVEL | logger name     | message
//
// and sets the level of every named logger at once.
package common
