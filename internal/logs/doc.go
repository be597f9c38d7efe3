// Package logs reads back the JSON log file written alongside console output.
//
// Tail returns the last lines of the file (or everything after a byte
// offset) and can poll for new lines in follow mode. Records decodes those
// lines into structured entries so the logs command can filter by project,
// request and level.
package logs
