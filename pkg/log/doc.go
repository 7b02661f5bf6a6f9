/*
Package log provides structured logging for the galera replication core using
zerolog.

The package wraps zerolog to give every subsystem — certification, the
ordered queues, the coordinator, the GCS transport — a JSON (or console, for
interactive use) logger tagged with the fields that matter for diagnosing a
replicated system: component name, seqno pairs, and local trx ids.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("coordinator started")

	certLog := log.WithComponent("cert")
	certLog.Warn().Str("fingerprint", hex.EncodeToString(fp)).Msg("soft conflict")

	log.WithSeqno(global, local).Debug().Msg("to_queue released")

# Log levels

Debug, Info, Warn, Error, Fatal — matching the severities enumerated in the
specification. Fatal logs then calls os.Exit(1); it is reserved for the
§7 "fatal" error kind (broken invariant), after which recovery is not
attempted.
*/
package log
