// Package logging writes leveled key-value log lines for the index layer.
//
// A Logger is built from a Config naming its level, format and output:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Output: "stderr"})
//
// New fails on an unknown level or format and when the output file cannot
// be opened. NewWithWriter targets an io.Writer and falls back to info and
// text. NewNop discards everything.
//
// Fields are passed as alternating keys and values. Error values are logged
// as their message, and a key given twice keeps its first position with its
// last value:
//
//	logger.Info("index opened", "path", path, "pairs", 1024)
//
// WithIndex tags every line of a child logger with the attribute it serves,
// and WithFields attaches fixed pairs. Arguments that are costly to build
// belong behind Enabled:
//
//	if logger.Enabled(logging.LevelDebug) {
//		logger.Debug("filter evaluated", "filter", f.String())
//	}
//
// The text format prints fields in the order they were added:
//
//	2026-02-18T10:30:00Z [info] index opened index=uid path=/var/lib/xdbm/uid.xdbm pairs=1024
//
// The JSON format writes ts, level, msg and index first:
//
//	{"ts":"2026-02-18T10:30:00Z","level":"info","msg":"index opened","index":"uid","pairs":1024}
package logging
