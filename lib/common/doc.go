// Package common provides the configuration and logging shared by the stacKV packages
// and the command line interface.
//
// Key Components:
//
//   - ChainConfig: all parameters needed to assemble a store chain (layer list, storage
//     locations, remote source, retry policy, codec, log level) with a formatted String dump.
//
//   - Logger: custom implementation of dragonboat's logger.ILogger. Every package obtains its
//     logger with logger.GetLogger(name), InitLoggers installs the factory and sets the level
//     of the store, engine, chain and cli loggers.
package common
