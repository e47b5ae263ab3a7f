// Package logging configures logrus for the command executor and provides the
// marker filter used to route command audit lines to a dedicated sink.
//
// Entries are marked by setting the MarkerField field:
//
//	log.WithField(logging.MarkerField, logging.MarkerOSCmd).Info(commandLine)
//
// A MarkerFilterHook attached to the logger forwards only marked entries.
package logging
