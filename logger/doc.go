// Package logger provides structured logging for voicebot using zerolog.
//
// Loggers are component-scoped and take a message plus optional field
// maps. Pipeline identifiers travel on the context and are lifted into
// log lines by WithContext.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("pipeline")
//	log.Info("run finished", logger.Fields(logger.FieldRunID, id))
package logger
